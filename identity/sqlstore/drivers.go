package sqlstore

// Drivers for every supported dialect. The registered database/sql driver
// names equal the dialect names.
import (
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)
