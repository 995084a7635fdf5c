package main

import (
	"regexp"
	"strings"
)

var (
	linePattern        = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] \[[^\]]*\]: (.*?)\r?$`)
	chatPattern        = regexp.MustCompile(`^<([^>]*)> (.*)$`)
	joinPattern        = regexp.MustCompile(`^(.*) joined the game$`)
	leavePattern       = regexp.MustCompile(`^(.*) left the game$`)
	serverStartPattern = regexp.MustCompile(`^Done \([^)]*\)! For help, type "help"$`)
	serverStopPattern  = regexp.MustCompile(`^Stopping the server$`)
	ansiPattern        = regexp.MustCompile("\x1b\\[[0-9;]*m")

	listPattern = regexp.MustCompile(`^There are ([^ ]*) of a max of ([^ ]*) players online: ?(.*)$`)
)

// ParseLogLine classifies one line of latest.log. Lines without the
// "[HH:MM:SS] [thread]: " prefix, and bodies matching no pattern, yield nil.
func ParseLogLine(line string) LogEvent {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	body := m[1]

	if m := chatPattern.FindStringSubmatch(body); m != nil {
		return PlayerChat{Name: m[1], Message: ansiPattern.ReplaceAllString(m[2], "")}
	}
	if m := joinPattern.FindStringSubmatch(body); m != nil {
		return PlayerAction{Name: m[1], Kind: ActionLogin}
	}
	if m := leavePattern.FindStringSubmatch(body); m != nil {
		return PlayerAction{Name: m[1], Kind: ActionLogout}
	}
	if serverStartPattern.MatchString(body) {
		return ServerLifecycle{Kind: LifecycleStart}
	}
	if serverStopPattern.MatchString(body) {
		return ServerLifecycle{Kind: LifecycleStop}
	}
	return nil
}

// PlayerList is the parsed reply of the "list" console command.
type PlayerList struct {
	Count string
	Max   string
	Users []string
}

// ParsePlayerList parses "There are 2 of a max of 20 players online: Alice, Bob".
func ParsePlayerList(reply string) (PlayerList, bool) {
	m := listPattern.FindStringSubmatch(strings.TrimSpace(reply))
	if m == nil {
		return PlayerList{}, false
	}
	users := []string{}
	for _, u := range strings.Split(m[3], ", ") {
		if u = strings.TrimSpace(u); u != "" {
			users = append(users, u)
		}
	}
	return PlayerList{Count: m[1], Max: m[2], Users: users}, true
}
