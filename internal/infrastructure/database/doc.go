// Package database opens the node's SQLite reading journal.
//
// The file lives on persistent storage and survives power loss, unlike
// the retained block. Schema changes are additive migrations embedded in
// the binary (see the migrations package) and applied with Migrate on
// every start.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
