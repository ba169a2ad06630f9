// Package router wires the HTTP routes of the collections service and
// implements the JSON handlers. All routes under the protected group
// resolve the caller through the session token middleware; handlers take
// the user ID from the request context only.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/kolekt/internal/auth"
	"github.com/patric-chuzhbe/kolekt/internal/authenticator"
	"github.com/patric-chuzhbe/kolekt/internal/gzippedhttp"
	"github.com/patric-chuzhbe/kolekt/internal/logger"
	"github.com/patric-chuzhbe/kolekt/internal/models"
	"github.com/patric-chuzhbe/kolekt/internal/service"
	"github.com/patric-chuzhbe/kolekt/internal/user"
)

type credentialVerifier interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

type userKeeper interface {
	GetUserByID(ctx context.Context, userID int64) (*user.User, bool, error)
}

// Router bundles the HTTP handlers of the service.
type Router struct {
	svc      *service.Service
	verifier credentialVerifier
	users    userKeeper
	validate *validator.Validate
}

// New builds the chi router with the full middleware chain and all routes.
func New(
	svc *service.Service,
	verifier credentialVerifier,
	users userKeeper,
	theAuth authenticator.Authenticator,
) *chi.Mux {
	handlers := &Router{
		svc:      svc,
		verifier: verifier,
		users:    users,
		validate: validator.New(),
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.UngzipRequest,
		gzippedhttp.GzipResponse,
	)

	router.Post(`/login`, handlers.PostLogin)
	router.Post(`/logout`, handlers.PostLogout)
	router.Get(`/ping`, handlers.GetPing)

	router.Group(func(protected chi.Router) {
		protected.Use(theAuth.AuthenticateUser)

		protected.Get(`/me`, handlers.GetMe)

		protected.Get(`/collections`, handlers.GetCollections)
		protected.Post(`/collections`, handlers.PostCollections)
		protected.Get(`/collections/{id}`, handlers.GetCollection)
		protected.Put(`/collections/{id}`, handlers.PutCollection)
		protected.Patch(`/collections/{id}`, handlers.PatchCollection)
		protected.Delete(`/collections/{id}`, handlers.DeleteCollection)

		protected.Get(`/items`, handlers.GetItems)
		protected.Post(`/items`, handlers.PostItems)
		protected.Get(`/items/{id}`, handlers.GetItem)
		protected.Put(`/items/{id}`, handlers.PutItem)
		protected.Patch(`/items/{id}`, handlers.PatchItem)
		protected.Delete(`/items/{id}`, handlers.DeleteItem)
	})

	return router
}

// PostLogin verifies the credentials and responds with a session token.
func (r *Router) PostLogin(res http.ResponseWriter, req *http.Request) {
	var request models.LoginRequest
	if !r.decodeAndValidate(res, req, &request) {
		return
	}

	token, err := r.verifier.Authenticate(req.Context(), request.Username, request.Password)
	if err != nil {
		r.writeError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, models.LoginResponse{Token: token})
}

// PostLogout acknowledges the logout. Session tokens are stateless, so the
// client alone is responsible for discarding its token.
func (r *Router) PostLogout(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, http.StatusOK, models.LogoutResponse{Success: true})
}

// GetMe returns the authenticated user's record without the credential hash.
func (r *Router) GetMe(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	usr, found, err := r.users.GetUserByID(req.Context(), userID)
	if err != nil {
		r.writeError(res, err)
		return
	}
	if !found {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrInvalidToken.Error()})
		return
	}

	writeJSON(res, http.StatusOK, usr)
}

// GetPing reports the health of the storage layer.
func (r *Router) GetPing(res http.ResponseWriter, req *http.Request) {
	if err := r.svc.Ping(req.Context()); err != nil {
		r.writeError(res, err)
		return
	}

	res.WriteHeader(http.StatusOK)
}

// GetCollections lists the caller's collections with item counts.
func (r *Router) GetCollections(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	collections, err := r.svc.ListCollections(req.Context(), userID)
	if err != nil {
		r.writeError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, collections)
}

// GetCollection returns one owned collection together with its items.
func (r *Router) GetCollection(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	collectionID, err := parseIDParam(req)
	if err != nil {
		r.writeError(res, models.ErrNotFound)
		return
	}

	collection, err := r.svc.GetCollection(req.Context(), userID, collectionID)
	if err != nil {
		r.writeError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, collection)
}

// PostCollections creates a collection owned by the caller.
func (r *Router) PostCollections(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	var request models.CollectionCreateRequest
	if !r.decodeAndValidate(res, req, &request) {
		return
	}

	collection, err := r.svc.CreateCollection(req.Context(), userID, request.Title)
	if err != nil {
		r.writeError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, collection)
}

// PutCollection replaces the mutable fields of an owned collection.
func (r *Router) PutCollection(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	collectionID, err := parseIDParam(req)
	if err != nil {
		r.writeError(res, models.ErrNotFound)
		return
	}

	var request models.CollectionUpdateRequest
	if !r.decodeAndValidate(res, req, &request) {
		return
	}

	err = r.svc.UpdateCollection(req.Context(), userID, collectionID, models.CollectionPatch{Title: &request.Title})
	if err != nil {
		r.writeError(res, err)
		return
	}

	res.WriteHeader(http.StatusNoContent)
}

// PatchCollection applies a partial update; an empty patch is a no-op 204.
func (r *Router) PatchCollection(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	collectionID, err := parseIDParam(req)
	if err != nil {
		r.writeError(res, models.ErrNotFound)
		return
	}

	var patch models.CollectionPatch
	if !r.decodeAndValidate(res, req, &patch) {
		return
	}

	if err := r.svc.UpdateCollection(req.Context(), userID, collectionID, patch); err != nil {
		r.writeError(res, err)
		return
	}

	res.WriteHeader(http.StatusNoContent)
}

// DeleteCollection removes an owned collection and cascades to its items.
func (r *Router) DeleteCollection(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	collectionID, err := parseIDParam(req)
	if err != nil {
		r.writeError(res, models.ErrNotFound)
		return
	}

	if err := r.svc.DeleteCollection(req.Context(), userID, collectionID); err != nil {
		r.writeError(res, err)
		return
	}

	res.WriteHeader(http.StatusNoContent)
}

// GetItems lists the items of the collection given by the collectionId
// query parameter.
func (r *Router) GetItems(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	rawCollectionID := req.URL.Query().Get("collectionId")
	if rawCollectionID == "" {
		writeJSON(res, http.StatusBadRequest, models.ErrorResponse{Error: "collectionId is required"})
		return
	}
	collectionID, err := strconv.ParseInt(rawCollectionID, 10, 64)
	if err != nil {
		writeJSON(res, http.StatusBadRequest, models.ErrorResponse{Error: "collectionId must be an integer"})
		return
	}

	items, err := r.svc.ListItems(req.Context(), userID, collectionID)
	if err != nil {
		r.writeError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, items)
}

// GetItem returns a single owned item, including its collectionId.
func (r *Router) GetItem(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	itemID, err := parseIDParam(req)
	if err != nil {
		r.writeError(res, models.ErrNotFound)
		return
	}

	item, err := r.svc.GetItem(req.Context(), userID, itemID)
	if err != nil {
		r.writeError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, item)
}

// PostItems creates an item under a collection owned by the caller.
func (r *Router) PostItems(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	var request models.ItemCreateRequest
	if !r.decodeAndValidate(res, req, &request) {
		return
	}

	itemID, err := r.svc.CreateItem(req.Context(), userID, request)
	if err != nil {
		r.writeError(res, err)
		return
	}

	writeJSON(res, http.StatusOK, models.ItemCreateResponse{ID: itemID})
}

// PutItem replaces an owned item completely; omitted optional fields are
// overwritten with zero values.
func (r *Router) PutItem(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	itemID, err := parseIDParam(req)
	if err != nil {
		r.writeError(res, models.ErrNotFound)
		return
	}

	var request models.ItemUpdateRequest
	if !r.decodeAndValidate(res, req, &request) {
		return
	}

	if err := r.svc.ReplaceItem(req.Context(), userID, itemID, request); err != nil {
		r.writeError(res, err)
		return
	}

	res.WriteHeader(http.StatusNoContent)
}

// PatchItem applies a partial update; an empty patch is a no-op 204.
func (r *Router) PatchItem(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	itemID, err := parseIDParam(req)
	if err != nil {
		r.writeError(res, models.ErrNotFound)
		return
	}

	var patch models.ItemPatch
	if !r.decodeAndValidate(res, req, &patch) {
		return
	}

	if err := r.svc.PatchItem(req.Context(), userID, itemID, patch); err != nil {
		r.writeError(res, err)
		return
	}

	res.WriteHeader(http.StatusNoContent)
}

// DeleteItem removes an owned item.
func (r *Router) DeleteItem(res http.ResponseWriter, req *http.Request) {
	userID, ok := auth.UserIDFromContext(req.Context())
	if !ok {
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: auth.ErrNoToken.Error()})
		return
	}

	itemID, err := parseIDParam(req)
	if err != nil {
		r.writeError(res, models.ErrNotFound)
		return
	}

	if err := r.svc.DeleteItem(req.Context(), userID, itemID); err != nil {
		r.writeError(res, err)
		return
	}

	res.WriteHeader(http.StatusNoContent)
}

func (r *Router) decodeAndValidate(res http.ResponseWriter, req *http.Request, target interface{}) bool {
	if err := json.NewDecoder(req.Body).Decode(target); err != nil {
		writeJSON(res, http.StatusBadRequest, models.ErrorResponse{Error: "invalid JSON body"})
		return false
	}

	if err := r.validate.Struct(target); err != nil {
		writeJSON(res, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return false
	}

	return true
}

func (r *Router) writeError(res http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeJSON(res, http.StatusNotFound, models.ErrorResponse{Error: models.ErrNotFound.Error()})

	case errors.Is(err, models.ErrInvalidRequest):
		writeJSON(res, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})

	case errors.Is(err, models.ErrInvalidCredentials):
		writeJSON(res, http.StatusUnauthorized, models.ErrorResponse{Error: models.ErrInvalidCredentials.Error()})

	default:
		logger.Log.Debugln("internal error: ", zap.Error(err))
		writeJSON(res, http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
	}
}

func parseIDParam(req *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
}

func writeJSON(res http.ResponseWriter, status int, body interface{}) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(body); err != nil {
		logger.Log.Debugln("Error encoding the response body: ", zap.Error(err))
	}
}
