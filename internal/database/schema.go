package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the tables the booking engine needs, in dependency order.
// movies, theaters and users belong to the catalog; they are created here
// only so a fresh database can boot.
var schema = []struct {
	name string
	ddl  string
}{
	{"movies", `CREATE TABLE IF NOT EXISTS movies (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB`},
	{"theaters", `CREATE TABLE IF NOT EXISTS theaters (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB`},
	{"users", `CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		role VARCHAR(16) NOT NULL DEFAULT 'CUSTOMER',
		is_active TINYINT(1) NOT NULL DEFAULT 1
	) ENGINE=InnoDB`},
	{"sessions", `CREATE TABLE IF NOT EXISTS sessions (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		movie_id BIGINT UNSIGNED NOT NULL,
		theater_id BIGINT UNSIGNED NOT NULL,
		starts_at DATETIME NOT NULL,
		price_per_seat DECIMAL(10,2) NOT NULL DEFAULT 0,
		total_seats INT UNSIGNED NOT NULL,
		status ENUM('SCHEDULED','CANCELLED','COMPLETED') NOT NULL DEFAULT 'SCHEDULED',
		version INT UNSIGNED NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_sessions_movie_start (movie_id, starts_at),
		KEY idx_sessions_theater_start (theater_id, starts_at),
		CONSTRAINT fk_sessions_movie FOREIGN KEY (movie_id) REFERENCES movies(id),
		CONSTRAINT fk_sessions_theater FOREIGN KEY (theater_id) REFERENCES theaters(id)
	) ENGINE=InnoDB`},
	{"session_seats", `CREATE TABLE IF NOT EXISTS session_seats (
		session_id BIGINT UNSIGNED NOT NULL,
		seat_label VARCHAR(16) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, seat_label),
		CONSTRAINT fk_session_seats_session FOREIGN KEY (session_id) REFERENCES sessions(id)
	) ENGINE=InnoDB`},
	{"bookings", `CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		session_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		movie_id BIGINT UNSIGNED NOT NULL,
		theater_id BIGINT UNSIGNED NOT NULL,
		total_price DECIMAL(10,2) NOT NULL,
		status ENUM('PENDING','CONFIRMED','CANCELLED','COMPLETED') NOT NULL DEFAULT 'PENDING',
		booking_date DATETIME NOT NULL,
		cancellation_reason VARCHAR(512) NULL,
		cancellation_date DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_bookings_user_date (user_id, booking_date),
		KEY idx_bookings_session (session_id),
		CONSTRAINT fk_bookings_session FOREIGN KEY (session_id) REFERENCES sessions(id)
	) ENGINE=InnoDB`},
	{"booking_seats", `CREATE TABLE IF NOT EXISTS booking_seats (
		booking_id BIGINT UNSIGNED NOT NULL,
		seat_label VARCHAR(16) NOT NULL,
		PRIMARY KEY (booking_id, seat_label),
		CONSTRAINT fk_booking_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings(id)
	) ENGINE=InnoDB`},
}

// Migrate creates any missing tables.  It is safe to run on every boot.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, t := range schema {
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("creating %s table: %w", t.name, err)
		}
	}
	return nil
}
