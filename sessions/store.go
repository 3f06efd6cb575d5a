package sessions

// Key names one persisted slot
type Key string

const (
	KeyAccessToken Key = "access_token"
	KeyIDToken     Key = "id_token"
	KeyExpiresAt   Key = "expires_at"
	KeyUserID      Key = "user_id"
	KeyUserProfile Key = "user_profile"
	KeyTheme       Key = "theme"
	KeyActivity    Key = "useractivity"
	KeyStartingURL Key = "starting_url"

	// provider renewal state, shared with later processes
	KeyRefreshToken Key = "refresh_token"
	KeyFrameCookies Key = "frame_cookies"
)

// clearedOnLogout lists the keys removed by UserContext.Clear. The profile and
// starting URL outlive a logout.
var clearedOnLogout = []Key{
	KeyAccessToken,
	KeyIDToken,
	KeyExpiresAt,
	KeyUserID,
	KeyTheme,
	KeyActivity,
	KeyRefreshToken,
	KeyFrameCookies,
}

// Store is the durable key/value persistence behind a session.
// Values written by one process may be read by another; last write wins.
type Store interface {
	// Get returns the stored value and whether it exists
	Get(key Key) (string, bool)

	// Set creates or replaces the value
	Set(key Key, value string) error

	// Remove deletes the value, removing a missing key is not an error
	Remove(key Key) error
}
