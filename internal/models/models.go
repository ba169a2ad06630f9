// Package models defines the domain records, the request/response DTOs of
// the HTTP API and the shared error taxonomy of the service.
package models

import "errors"

// ErrNotFound is returned when a resource is absent or not owned by the
// caller. The two cases are intentionally indistinguishable so that the
// existence of other users' data never leaks.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is returned by login when the username is unknown
// or the password does not match the stored hash.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidRequest marks client errors caused by a missing or malformed
// field. Wrap it with the concrete reason; handlers map it to 400.
var ErrInvalidRequest = errors.New("invalid request")

// Rarity is the fixed enumeration of item rarities.
type Rarity string

const (
	RarityCommon    Rarity = "Common"
	RarityUncommon  Rarity = "Uncommon"
	RarityRare      Rarity = "Rare"
	RarityLegendary Rarity = "Legendary"
)

// Collection is an owned catalog grouping. UserID never leaves the server.
type Collection struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	UserID     int64  `json:"-"`
	ItemsCount int    `json:"itemsCount"`
}

// CollectionWithItems is a collection materialized together with its items,
// as served by GET /collections/{id}.
type CollectionWithItems struct {
	Collection
	Items []Item `json:"items"`
}

// Item is a single catalog entry. Ownership is not stored on the item; it
// is always derived through the parent collection.
type Item struct {
	ID           int64   `json:"id"`
	CollectionID int64   `json:"collectionId"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Image        string  `json:"image"`
	Rarity       string  `json:"rarity"`
	Price        float64 `json:"price"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type LogoutResponse struct {
	Success bool `json:"success"`
}

type CollectionCreateRequest struct {
	Title string `json:"title" validate:"required"`
}

type CollectionUpdateRequest struct {
	Title string `json:"title" validate:"required"`
}

// CollectionPatch carries the optional fields of PATCH /collections/{id}.
// Nil fields are left untouched.
type CollectionPatch struct {
	Title *string `json:"title"`
}

// Empty reports whether the patch carries no fields at all. An empty patch
// is a successful no-op.
func (p CollectionPatch) Empty() bool {
	return p.Title == nil
}

type ItemCreateRequest struct {
	CollectionID int64   `json:"collectionId" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Description  string  `json:"description"`
	Image        string  `json:"image"`
	Rarity       string  `json:"rarity" validate:"omitempty,oneof=Common Uncommon Rare Legendary"`
	Price        float64 `json:"price" validate:"gte=0"`
}

type ItemCreateResponse struct {
	ID int64 `json:"id"`
}

// ItemUpdateRequest is the full-replace body of PUT /items/{id}. Fields
// absent from the request overwrite the stored record with their zero
// values.
type ItemUpdateRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Rarity      string  `json:"rarity" validate:"omitempty,oneof=Common Uncommon Rare Legendary"`
	Price       float64 `json:"price" validate:"gte=0"`
}

// ItemPatch carries the optional fields of PATCH /items/{id}. Only non-nil
// fields are written.
type ItemPatch struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Image       *string  `json:"image"`
	Rarity      *string  `json:"rarity" validate:"omitempty,oneof=Common Uncommon Rare Legendary"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
}

func (p ItemPatch) Empty() bool {
	return p.Name == nil &&
		p.Description == nil &&
		p.Image == nil &&
		p.Rarity == nil &&
		p.Price == nil
}

type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)
