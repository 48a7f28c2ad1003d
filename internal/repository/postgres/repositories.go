package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users    *UserRepository
	Tokens   *TokenRepository
	Sessions *SessionRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool txBeginner) *Repositories {
	return &Repositories{
		Users:    NewUserRepository(pool),
		Tokens:   NewTokenRepository(pool),
		Sessions: NewSessionRepository(pool),
	}
}
