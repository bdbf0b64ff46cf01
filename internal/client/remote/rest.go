package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/jotflow/jotflow/internal/common"
	"github.com/jotflow/jotflow/internal/logging"
)

// Store is the production Client: CRUD over the hosted store's REST
// interface (PostgREST-style collections) and change notifications over
// its realtime websocket.
type Store struct {
	http        *resty.Client
	apiKey      string
	session     *Session
	realtimeURL string
	log         logging.Logger
}

// Options configures a Store.
type Options struct {
	BaseURL     string
	RealtimeURL string
	APIKey      string
	Logger      logging.Logger
}

// NewStore builds a Store for the given project endpoint.
func NewStore(opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Content-Type", "application/json")

	return &Store{
		http:        httpClient,
		apiKey:      opts.APIKey,
		session:     &Session{},
		realtimeURL: opts.RealtimeURL,
		log:         log.With("component", "remote"),
	}
}

// SignIn authenticates with email/password and installs the returned
// token pair on the store's session.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("apikey", s.apiKey).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&tokens).
		Post("/auth/v1/token?grant_type=password")
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusBadRequest {
		return common.ErrUnauthorized
	}
	if resp.IsError() {
		return fmt.Errorf("sign-in failed: %s", resp.Status())
	}

	s.session.Set(tokens.AccessToken, tokens.RefreshToken)
	return nil
}

// SignOut drops the session tokens.
func (s *Store) SignOut() {
	s.session.Clear()
}

// refresh exchanges the refresh token for a new token pair.
func (s *Store) refresh(ctx context.Context, refreshToken string) (string, string, error) {
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("apikey", s.apiKey).
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&tokens).
		Post("/auth/v1/token?grant_type=refresh_token")
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	if resp.IsError() {
		return "", "", common.ErrUnauthorized
	}
	return tokens.AccessToken, tokens.RefreshToken, nil
}

// request builds an authenticated request against the collections API.
func (s *Store) request(ctx context.Context) (*resty.Request, error) {
	token, err := s.session.Token(ctx, s.refresh)
	if err != nil {
		return nil, err
	}

	r := s.http.R().SetContext(ctx).SetHeader("apikey", s.apiKey)
	if token != "" {
		r.SetHeader("Authorization", "Bearer "+token)
	}
	return r, nil
}

func collectionPath(collection string) string {
	return "/rest/v1/" + collection
}

func classify(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return common.ErrNotFound
	case resp.StatusCode() == http.StatusUnauthorized:
		return common.ErrUnauthorized
	case resp.StatusCode() >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", common.ErrRemoteUnavailable, resp.Status())
	case resp.IsError():
		return fmt.Errorf("remote error: %s", resp.Status())
	}
	return nil
}

// Select returns the collection's rows, optionally filtered and ordered
// server-side (plain columns only; encrypted payloads are opaque to the
// server).
func (s *Store) Select(ctx context.Context, collection string, opts SelectOpts) ([]json.RawMessage, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}

	if opts.OrderBy != "" {
		dir := "asc"
		if opts.Descending {
			dir = "desc"
		}
		req.SetQueryParam("order", opts.OrderBy+"."+dir)
	}
	for col, val := range opts.Filter {
		req.SetQueryParam(col, "eq."+val)
	}

	var rows []json.RawMessage
	resp, err := req.SetResult(&rows).Get(collectionPath(collection))
	if err := classify(resp, err); err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	return rows, nil
}

// Insert stores row and returns the server's representation, which
// carries the assigned id.
func (s *Store) Insert(ctx context.Context, collection string, row any) (json.RawMessage, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}

	var created []json.RawMessage
	resp, err := req.
		SetHeader("Prefer", "return=representation").
		SetBody(row).
		SetResult(&created).
		Post(collectionPath(collection))
	if err := classify(resp, err); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", collection, err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("insert into %s: empty response", collection)
	}
	return created[0], nil
}

// Update patches the row with the given id.
func (s *Store) Update(ctx context.Context, collection, id string, fields any) error {
	req, err := s.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.
		SetQueryParam("id", "eq."+id).
		SetBody(fields).
		Patch(collectionPath(collection))
	if err := classify(resp, err); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the row with the given id.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	req, err := s.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.
		SetQueryParam("id", "eq."+id).
		Delete(collectionPath(collection))
	if err := classify(resp, err); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Invoke calls a server-side function by name with a JSON body and
// returns the raw JSON response.
func (s *Store) Invoke(ctx context.Context, name string, body any) (json.RawMessage, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := req.
		SetBody(body).
		Post("/functions/v1/" + name)
	if err := classify(resp, err); err != nil {
		return nil, fmt.Errorf("invoke %s: %w", name, err)
	}
	return json.RawMessage(resp.Body()), nil
}

// Ping probes the REST endpoint. Any response at all means the store is
// reachable; only transport failures count as offline.
func (s *Store) Ping(ctx context.Context) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("apikey", s.apiKey).
		Get("/rest/v1/")
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", common.ErrRemoteUnavailable, resp.Status())
	}
	return nil
}

// Close is a no-op for the HTTP transport; realtime subscriptions are
// owned by their contexts.
func (s *Store) Close() error {
	return nil
}
