// Package stores provides the shared MySQL connection used by the per-entity
// store packages underneath it.
package stores

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Open connects to MySQL with GORM. Every entity store shares the returned
// handle; GORM pools the underlying connections.
func Open(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}
