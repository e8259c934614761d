// Package store persists users and their linked accounts with gorm and
// implements goSession.UserProvider, goSession.AccountLinker and
// goSession.PasswordHashUpdater.
//
// Postgres schemas are managed by the embedded golang-migrate migrations
// ([RunMigrations]); SQLite databases, used for development and tests, are
// created with [AutoMigrate].
package store
