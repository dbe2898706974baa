package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/buildstatus/internal/domain/model"
	"github.com/ericfisherdev/buildstatus/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Token values are sealed with AES-256-GCM, using the scope as additional
// data so a stored value only opens under the scope it was written for.
type CredentialRepo struct {
	db     *DB
	aead   cipher.AEAD
	keyErr error // Returned by Set, Get and List when the cipher is unusable.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for AES-256-GCM,
// or nil to disable credential storage (Set, Get and List then return driven.ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	r := &CredentialRepo{db: db}
	if key == nil {
		r.keyErr = driven.ErrEncryptionKeyNotSet
		return r
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		r.keyErr = fmt.Errorf("init token cipher: %w", err)
		return r
	}
	if r.aead, err = cipher.NewGCM(block); err != nil {
		r.keyErr = fmt.Errorf("init token cipher: %w", err)
	}
	return r
}

// Set stores or replaces the token for the given scope.
func (r *CredentialRepo) Set(ctx context.Context, scope, plaintext string) error {
	encrypted, err := r.seal(scope, plaintext)
	if err != nil {
		return err
	}

	const query = `INSERT INTO credentials (scope, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(scope) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err = r.db.Writer.ExecContext(ctx, query, scope, encrypted)
	if err != nil {
		return fmt.Errorf("set credential %q: %w", scope, err)
	}
	return nil
}

// Get retrieves the plaintext token for the given scope.
// Returns ("", nil) if no credential exists for that scope.
func (r *CredentialRepo) Get(ctx context.Context, scope string) (string, error) {
	if r.keyErr != nil {
		return "", r.keyErr
	}

	const query = `SELECT value FROM credentials WHERE scope = ?`
	var encrypted string
	err := r.db.Reader.QueryRowContext(ctx, query, scope).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q: %w", scope, err)
	}

	plaintext, err := r.open(scope, encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt credential %q: %w", scope, err)
	}
	return plaintext, nil
}

// List returns all stored credentials with decrypted values.
func (r *CredentialRepo) List(ctx context.Context) ([]model.Credential, error) {
	if r.keyErr != nil {
		return nil, r.keyErr
	}

	const query = `SELECT id, scope, value, updated_at FROM credentials ORDER BY scope`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		var cred model.Credential
		var encrypted string
		var updatedAt string
		if err := rows.Scan(&cred.ID, &cred.Scope, &encrypted, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}

		plaintext, err := r.open(cred.Scope, encrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt credential %q: %w", cred.Scope, err)
		}
		cred.Value = plaintext

		cred.UpdatedAt, err = parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at for credential %q: %w", cred.Scope, err)
		}

		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// Delete removes the credential for the given scope.
func (r *CredentialRepo) Delete(ctx context.Context, scope string) error {
	const query = `DELETE FROM credentials WHERE scope = ?`
	_, err := r.db.Writer.ExecContext(ctx, query, scope)
	if err != nil {
		return fmt.Errorf("delete credential %q: %w", scope, err)
	}
	return nil
}

// seal encrypts plaintext bound to scope and returns base64(nonce || ciphertext || tag).
func (r *CredentialRepo) seal(scope, plaintext string) (string, error) {
	if r.keyErr != nil {
		return "", r.keyErr
	}

	nonce := make([]byte, r.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	sealed := r.aead.Seal(nonce, nonce, []byte(plaintext), []byte(scope))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// open reverses seal. It fails when the value was sealed for another scope
// or under another key.
func (r *CredentialRepo) open(scope, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	nonceSize := r.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := r.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(scope))
	if err != nil {
		return "", fmt.Errorf("open sealed token: %w", err)
	}
	return string(plaintext), nil
}
