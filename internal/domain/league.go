// Package domain defines the core types of the collector: leagues, entity
// categories, price observations, and the store/cache/blob interfaces the
// infrastructure packages implement.
package domain

import "time"

// LeagueStatus represents the lifecycle state of a league.
type LeagueStatus string

const (
	LeagueStatusActive  LeagueStatus = "Active"
	LeagueStatusExpired LeagueStatus = "Expired"
)

// League is a dataset epoch under which all price observations are scoped.
// Immutable once created except for Status.
type League struct {
	ID        int64
	Name      string
	Status    LeagueStatus
	StartDate time.Time
}

// LeagueInfo describes a league discovered upstream (e.g. from the wiki
// listing) before it has a database identity.
type LeagueInfo struct {
	Name      string
	Status    LeagueStatus
	StartDate time.Time
}
