// Package session provides session management for the rail game server.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Short session IDs cut from random UUIDs
//   - JSON file persistence (FilePersistence)
//   - SQLite persistence through GORM (SQLitePersistence)
//   - Eviction of idle sessions
//
// A persisted session stores the map ID, the seed and the full engine
// state, including the random source position, so a reloaded session
// continues exactly where it stopped.
//
// Usage:
//
//	store, err := session.NewSQLitePersistence("sessions.db", maps, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(store, session.WithLogger(logger))
//
//	sess, err := manager.Create("", service.SessionSpec{
//		MapID:   "heartland",
//		Map:     desc,
//		Players: players,
//		Seed:    42,
//	})
package session
