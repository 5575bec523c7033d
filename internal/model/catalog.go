package model

import "time"

// Movie is a catalog entry owned by the catalog store.  The booking
// engine only reads it to validate references.
type Movie struct {
    ID        uint64    // movies.id
    Title     string    // movies.title
    CreatedAt time.Time // movies.created_at
}

// Theater is a venue hosting sessions.  Read-only for the booking engine.
type Theater struct {
    ID        uint64    // theaters.id
    Name      string    // theaters.name
    CreatedAt time.Time // theaters.created_at
}
