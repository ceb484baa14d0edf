// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to properly
// configure MySQL connections based on the application's configuration. A
// sqlite driver is supported as well, primarily for in-memory test databases.
//
// # Connect
//
// The generic Connect function establishes a connection to the database,
// applies pool settings and verifies the connection with a bounded ping.
//
// # Schema Inspection
//
// The package includes tools to inspect the database schema, used by the
// tracker store to verify after migration that the persisted tables carry the
// columns the entity models expect.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(db, "servers")
package database
