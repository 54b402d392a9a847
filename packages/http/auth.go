package http

// AuthRequest is what an AuthProvider sees of the outgoing request.
type AuthRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// AuthProvider supplies headers that authenticate an outgoing request.
// They are merged first, so the origin marker and caller headers override
// them on collision.
type AuthProvider interface {
	AuthHeaders(req *AuthRequest) (map[string]string, error)
}

// AuthFunc adapts a function to the AuthProvider interface.
type AuthFunc func(req *AuthRequest) (map[string]string, error)

func (f AuthFunc) AuthHeaders(req *AuthRequest) (map[string]string, error) {
	return f(req)
}

// NoAuth adds no headers.
type NoAuth struct{}

func (NoAuth) AuthHeaders(*AuthRequest) (map[string]string, error) {
	return nil, nil
}

// StaticAuth sends the same Authorization value with every request.
type StaticAuth string

func (s StaticAuth) AuthHeaders(*AuthRequest) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	return map[string]string{"Authorization": string(s)}, nil
}

// BearerAuth sends "Authorization: Bearer <token>".
func BearerAuth(token string) StaticAuth {
	return StaticAuth("Bearer " + token)
}
