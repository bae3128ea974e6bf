package storage

// settings.go holds the key/value settings and the known-hosts list.

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// KeyLastURL stores the URL of the last successful connection.
const KeyLastURL = "last_url"

// maxKnownHosts bounds the known_hosts table.
const maxKnownHosts = 20

// timeLayout is fixed-width so stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// KnownHost is a host the client has connected to before.
type KnownHost struct {
	URL           string
	Name          string
	LastConnected time.Time
}

// Get returns the value for key. Returns "", false, nil if it is not set.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		INSERT OR REPLACE INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.Exec(query, key, value, time.Now().UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// LastURL returns the last URL the client connected to, or "".
func (s *SQLiteStore) LastURL() (string, error) {
	url, _, err := s.Get(KeyLastURL)
	return url, err
}

// SaveLastURL records url as the last successful connection and adds it to
// the known hosts.
func (s *SQLiteStore) SaveLastURL(url string) error {
	log.Printf("storage: saving last url %s", url)
	if err := s.Set(KeyLastURL, url); err != nil {
		return err
	}
	return s.TouchHost(url, "")
}

// TouchHost upserts a known host and marks it as just connected. A non-empty
// name replaces the stored one. The table is trimmed to the most recent hosts.
func (s *SQLiteStore) TouchHost(url, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const upsert = `
		INSERT INTO known_hosts (url, name, last_connected)
		VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE known_hosts.name END,
			last_connected = excluded.last_connected
	`
	if _, err := s.db.Exec(upsert, url, name, time.Now().UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("touch host: %w", err)
	}

	const trim = `
		DELETE FROM known_hosts WHERE url NOT IN (
			SELECT url FROM known_hosts ORDER BY last_connected DESC LIMIT ?
		)
	`
	if _, err := s.db.Exec(trim, maxKnownHosts); err != nil {
		return fmt.Errorf("trim known hosts: %w", err)
	}
	return nil
}

// KnownHosts lists remembered hosts, most recently connected first.
func (s *SQLiteStore) KnownHosts() ([]KnownHost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT url, name, last_connected FROM known_hosts ORDER BY last_connected DESC")
	if err != nil {
		return nil, fmt.Errorf("list known hosts: %w", err)
	}
	defer rows.Close()

	var hosts []KnownHost
	for rows.Next() {
		var h KnownHost
		var last string
		if err := rows.Scan(&h.URL, &h.Name, &last); err != nil {
			return nil, fmt.Errorf("scan known host: %w", err)
		}
		h.LastConnected, err = time.Parse(timeLayout, last)
		if err != nil {
			return nil, fmt.Errorf("parse last_connected: %w", err)
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}
