package cache

import "fmt"

// Key layout, one scope per entity a mutation can touch:
//
//	note:<id>            the note itself
//	note:<id>:versions   its version list
//	user:<id>:notes      a user's own collection
//	user:<id>:shared     notes shared with a user
//	user:<id>:search:<q> one search result set

func NoteKey(noteID string) string {
	return fmt.Sprintf("note:%s", noteID)
}

func NoteVersionsKey(noteID string) string {
	return fmt.Sprintf("note:%s:versions", noteID)
}

func OwnerNotesKey(userID string) string {
	return fmt.Sprintf("user:%s:notes", userID)
}

func SharedNotesKey(userID string) string {
	return fmt.Sprintf("user:%s:shared", userID)
}

func SearchKey(userID, query string) string {
	return fmt.Sprintf("user:%s:search:%s", userID, query)
}

func SearchPrefix(userID string) string {
	return fmt.Sprintf("user:%s:search:", userID)
}
