package natsadapter

import "strings"

const (
	visitSubjectPrefix    = "checkin.visit."
	conquestSubjectPrefix = "checkin.conquered."
	viewSubjectPrefix     = "checkin.view."
)

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// token makes an id safe to use as a single subject token.
func token(id string) string {
	if id == "" {
		return "_"
	}
	return tokenReplacer.Replace(id)
}

// VisitSubject is where a user's recorded visits are published.
func VisitSubject(userID string) string { return visitSubjectPrefix + token(userID) }

// ConquestSubject is where a user's conquests are published.
func ConquestSubject(userID string) string { return conquestSubjectPrefix + token(userID) }

// ViewSubject is where a session's view snapshots are broadcast.
func ViewSubject(sessionID string) string { return viewSubjectPrefix + token(sessionID) }
