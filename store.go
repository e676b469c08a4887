package main

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists accounts and best scores in sqlite. In-progress game
// state is never persisted; a restart drops all live rooms.
type Store struct {
	db *sql.DB
}

type User struct {
	Pseudo    string `json:"pseudo"`
	Avatar    string `json:"avatar"`
	BestScore int    `json:"bestScore"`
}

var (
	errPseudoTaken = errors.New("pseudo already registered")
	errBadLogin    = errors.New("unknown pseudo or wrong password")
)

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	sqlStmt := `CREATE TABLE IF NOT EXISTS users (
		pseudo TEXT PRIMARY KEY,
		salt TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		avatar TEXT NOT NULL,
		best_score INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(sqlStmt); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// CreateUser registers a new account with a fresh salt.
func (s *Store) CreateUser(pseudo, password, avatar string) (*User, error) {
	var existing string
	err := s.db.QueryRow("SELECT pseudo FROM users WHERE pseudo = ?", pseudo).Scan(&existing)
	if err == nil {
		return nil, errPseudoTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	salt := newID(16)
	_, err = s.db.Exec(
		"INSERT INTO users (pseudo, salt, password_hash, avatar) VALUES (?, ?, ?, ?)",
		pseudo, salt, hashPassword(salt, password), avatar,
	)
	if err != nil {
		return nil, err
	}

	return &User{Pseudo: pseudo, Avatar: avatar}, nil
}

// Authenticate checks credentials and returns the stored account.
func (s *Store) Authenticate(pseudo, password string) (*User, error) {
	var salt, hash string
	u := &User{}

	err := s.db.QueryRow(
		"SELECT pseudo, salt, password_hash, avatar, best_score FROM users WHERE pseudo = ?",
		pseudo,
	).Scan(&u.Pseudo, &salt, &hash, &u.Avatar, &u.BestScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errBadLogin
	}
	if err != nil {
		return nil, err
	}

	if hashPassword(salt, password) != hash {
		return nil, errBadLogin
	}

	return u, nil
}

// UpdateBestScore raises a player's best score, never lowers it.
func (s *Store) UpdateBestScore(pseudo string, score int) error {
	_, err := s.db.Exec(
		"UPDATE users SET best_score = ? WHERE pseudo = ? AND best_score < ?",
		score, pseudo, score,
	)
	return err
}

// TopScores returns the highest best scores, for the client's panel.
func (s *Store) TopScores(limit int) ([]User, error) {
	rows, err := s.db.Query(
		"SELECT pseudo, avatar, best_score FROM users WHERE best_score > 0 ORDER BY best_score DESC, pseudo ASC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make([]User, 0, limit)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Pseudo, &u.Avatar, &u.BestScore); err != nil {
			return nil, err
		}
		scores = append(scores, u)
	}

	return scores, rows.Err()
}

func hashPassword(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + ":" + password))
	return hex.EncodeToString(sum[:])
}
