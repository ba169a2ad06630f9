// Package api implements the typed REST client of the collections
// service. It owns the session token: Login stores it, Logout discards
// it, and every protected call sends it as a bearer header. Transport
// errors are mapped onto the shared error taxonomy so callers can react
// with errors.Is.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/patric-chuzhbe/kolekt/internal/models"
	"github.com/patric-chuzhbe/kolekt/internal/user"
)

// ErrUnauthorized is returned for 401 responses: missing, invalid or
// expired session token, or wrong credentials on login.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound is returned for 404 responses. The server deliberately does
// not distinguish "absent" from "not owned".
var ErrNotFound = errors.New("not found")

// ErrBadRequest is returned for 400 responses.
var ErrBadRequest = errors.New("bad request")

const defaultRequestTimeout = 10 * time.Second

// Client is a thread-safe API client bound to one server.
type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

// Option customizes the client.
type Option func(*options)

type options struct {
	requestTimeout time.Duration
}

// WithRequestTimeout bounds every call; no request may block indefinitely.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.requestTimeout = timeout
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, optionsProto ...Option) *Client {
	opts := &options{
		requestTimeout: defaultRequestTimeout,
	}
	for _, protoOption := range optionsProto {
		protoOption(opts)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.requestTimeout)

	return &Client{http: httpClient}
}

// Login verifies the credentials and stores the received session token
// for subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var result models.LoginResponse
	response, err := c.http.R().
		SetContext(ctx).
		SetBody(models.LoginRequest{Username: username, Password: password}).
		SetResult(&result).
		Post("/login")
	if err != nil {
		return err
	}
	if err := errorFromResponse(response); err != nil {
		return err
	}

	c.mu.Lock()
	c.token = result.Token
	c.mu.Unlock()

	return nil
}

// Logout acknowledges the logout with the server and discards the local
// token. The token is discarded even when the server call fails; stateless
// tokens cannot be invalidated remotely anyway.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.http.R().
		SetContext(ctx).
		Post("/logout")

	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	return err
}

// HasToken reports whether a session token is currently held.
func (c *Client) HasToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.token != ""
}

// Me returns the authenticated user's record.
func (c *Client) Me(ctx context.Context) (*user.User, error) {
	result := &user.User{}
	response, err := c.protected(ctx).
		SetResult(result).
		Get("/me")
	if err != nil {
		return nil, err
	}
	if err := errorFromResponse(response); err != nil {
		return nil, err
	}

	return result, nil
}

// Ping checks the liveness of the server.
func (c *Client) Ping(ctx context.Context) error {
	response, err := c.http.R().
		SetContext(ctx).
		Get("/ping")
	if err != nil {
		return err
	}

	return errorFromResponse(response)
}

// Collections lists the caller's collections with item counts.
func (c *Client) Collections(ctx context.Context) ([]models.Collection, error) {
	result := []models.Collection{}
	response, err := c.protected(ctx).
		SetResult(&result).
		Get("/collections")
	if err != nil {
		return nil, err
	}
	if err := errorFromResponse(response); err != nil {
		return nil, err
	}

	return result, nil
}

// Collection fetches one collection materialized with its items.
func (c *Client) Collection(ctx context.Context, collectionID int64) (*models.CollectionWithItems, error) {
	result := &models.CollectionWithItems{}
	response, err := c.protected(ctx).
		SetResult(result).
		Get(fmt.Sprintf("/collections/%d", collectionID))
	if err != nil {
		return nil, err
	}
	if err := errorFromResponse(response); err != nil {
		return nil, err
	}

	return result, nil
}

// CreateCollection creates a collection and returns the created record.
func (c *Client) CreateCollection(ctx context.Context, title string) (*models.CollectionWithItems, error) {
	result := &models.CollectionWithItems{}
	response, err := c.protected(ctx).
		SetBody(models.CollectionCreateRequest{Title: title}).
		SetResult(result).
		Post("/collections")
	if err != nil {
		return nil, err
	}
	if err := errorFromResponse(response); err != nil {
		return nil, err
	}

	return result, nil
}

// RenameCollection replaces the collection title.
func (c *Client) RenameCollection(ctx context.Context, collectionID int64, title string) error {
	response, err := c.protected(ctx).
		SetBody(models.CollectionUpdateRequest{Title: title}).
		Put(fmt.Sprintf("/collections/%d", collectionID))
	if err != nil {
		return err
	}

	return errorFromResponse(response)
}

// DeleteCollection removes the collection and all of its items.
func (c *Client) DeleteCollection(ctx context.Context, collectionID int64) error {
	response, err := c.protected(ctx).
		Delete(fmt.Sprintf("/collections/%d", collectionID))
	if err != nil {
		return err
	}

	return errorFromResponse(response)
}

// Items lists the items of a collection.
func (c *Client) Items(ctx context.Context, collectionID int64) ([]models.Item, error) {
	result := []models.Item{}
	response, err := c.protected(ctx).
		SetQueryParam("collectionId", fmt.Sprintf("%d", collectionID)).
		SetResult(&result).
		Get("/items")
	if err != nil {
		return nil, err
	}
	if err := errorFromResponse(response); err != nil {
		return nil, err
	}

	return result, nil
}

// Item fetches a single item.
func (c *Client) Item(ctx context.Context, itemID int64) (*models.Item, error) {
	result := &models.Item{}
	response, err := c.protected(ctx).
		SetResult(result).
		Get(fmt.Sprintf("/items/%d", itemID))
	if err != nil {
		return nil, err
	}
	if err := errorFromResponse(response); err != nil {
		return nil, err
	}

	return result, nil
}

// CreateItem creates an item under a collection and returns the new ID.
func (c *Client) CreateItem(ctx context.Context, request models.ItemCreateRequest) (int64, error) {
	var result models.ItemCreateResponse
	response, err := c.protected(ctx).
		SetBody(request).
		SetResult(&result).
		Post("/items")
	if err != nil {
		return 0, err
	}
	if err := errorFromResponse(response); err != nil {
		return 0, err
	}

	return result.ID, nil
}

// ReplaceItem overwrites an item completely.
func (c *Client) ReplaceItem(ctx context.Context, itemID int64, request models.ItemUpdateRequest) error {
	response, err := c.protected(ctx).
		SetBody(request).
		Put(fmt.Sprintf("/items/%d", itemID))
	if err != nil {
		return err
	}

	return errorFromResponse(response)
}

// PatchItem updates a subset of item fields.
func (c *Client) PatchItem(ctx context.Context, itemID int64, patch models.ItemPatch) error {
	response, err := c.protected(ctx).
		SetBody(patch).
		Patch(fmt.Sprintf("/items/%d", itemID))
	if err != nil {
		return err
	}

	return errorFromResponse(response)
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, itemID int64) error {
	response, err := c.protected(ctx).
		Delete(fmt.Sprintf("/items/%d", itemID))
	if err != nil {
		return err
	}

	return errorFromResponse(response)
}

func (c *Client) protected(ctx context.Context) *resty.Request {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	request := c.http.R().SetContext(ctx)
	if token != "" {
		request.SetHeader("Authorization", "Bearer "+token)
	}

	return request
}

func errorFromResponse(response *resty.Response) error {
	if response.IsSuccess() {
		return nil
	}

	var sentinel error
	switch response.StatusCode() {
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusBadRequest:
		sentinel = ErrBadRequest
	default:
		return fmt.Errorf("unexpected status %d: %s", response.StatusCode(), response.String())
	}

	return fmt.Errorf("%w: %s", sentinel, response.Status())
}
