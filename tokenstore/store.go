package tokenstore

// Keys written by the login flow and the session watcher.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyTokenTime    = "tokenTime"
	KeyRole         = "rol"
	KeyUserID       = "id_usuario"
	KeyTeacherID    = "id_docente"
	KeyStudentID    = "id_estudiante"
)

// Store is a persistent key-value store scoped to one origin. It is shared by
// everything that touches the session, so readers must not cache values.
// sessions.Manager only uses Get, SetMany and Clear; Set and Delete are for
// the other writers of the origin, such as a UI keeping its theme.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// SetMany writes all values together where the backend allows it.
	SetMany(values map[string]string) error
	// Delete removes one key. A missing key is not an error.
	Delete(key string) error
	// Clear removes every key, not only the session keys.
	Clear() error
}
