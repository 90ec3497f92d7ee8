// Package server holds the HTTP ambient concerns shared by every
// landkeeper process: Prometheus metrics and per-IP rate limiting.
// Both are generalized from the teacher's single-process RPG server to
// apply uniformly across the gameserver and matchmaking processes.
package server
