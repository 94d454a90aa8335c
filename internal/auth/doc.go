// Package auth provides account storage and authentication for Lumen
// Core.
//
// It implements a 2-tier role model (user → admin) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - Short-lived HS256 JWT access tokens, validated by signature only
//   - Username/password registration with format and length validation
//
// Plaintext passwords exist only transiently inside Register and
// Authenticate; storage and logs only ever see PHC-format hashes.
package auth
