// Package postgresdb provides the PostgreSQL-backed implementation of the
// storage interface. Every query over collections and items carries the
// owner's user ID in its predicate; item ownership is resolved by joining
// through the parent collection.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/patric-chuzhbe/kolekt/internal/models"
	"github.com/patric-chuzhbe/kolekt/internal/user"
)

// PostgresDB is a PostgreSQL-backed implementation of the collections
// storage. It handles all persistence operations via a database/sql
// connection using the pgx stdlib driver.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables resetting the database schema before
// migration. It can be used for test setups or development purposes.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil, fmt.Errorf("error while `result.resetDB()` calling: %w", err)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil, fmt.Errorf("error while `goose.Up()` calling: %w", err)
	}

	return result, nil
}

// CreateUser inserts a new user record and returns the generated ID.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	row := database.QueryRowContext(
		ctx,
		`
			INSERT INTO users (username, firstname, lastname, password_hash)
				VALUES ($1, $2, $3, $4)
				RETURNING id
		`,
		usr.Username,
		usr.FirstName,
		usr.LastName,
		usr.PasswordHash,
	)
	var userID int64
	if err := row.Scan(&userID); err != nil {
		return 0, err
	}

	return userID, nil
}

// GetUserByID fetches a user by ID. The second return value reports
// whether the user exists.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID int64) (*user.User, bool, error) {
	return db.getUserBy(ctx, `id = $1`, userID)
}

// GetUserByUsername fetches a user by the unique login handle.
func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*user.User, bool, error) {
	return db.getUserBy(ctx, `username = $1`, username)
}

func (db *PostgresDB) getUserBy(ctx context.Context, predicate string, arg interface{}) (*user.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, username, firstname, lastname, password_hash FROM users WHERE `+predicate,
		arg,
	)
	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Username, &usr.FirstName, &usr.LastName, &usr.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

// GetNumberOfUsers returns the total amount of registered users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	row := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// ListCollections returns the caller's collections ordered by ID, each
// with its computed item count.
func (db *PostgresDB) ListCollections(ctx context.Context, userID int64) ([]models.Collection, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT
				c.id,
				c.title,
				COUNT(ci.id) AS items_count
			FROM collections c
				LEFT JOIN collection_items ci ON ci.collection_id = c.id
			WHERE c.user_id = $1
			GROUP BY c.id
			ORDER BY c.id
		`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Collection{}
	for rows.Next() {
		collection := models.Collection{UserID: userID}
		if err := rows.Scan(&collection.ID, &collection.Title, &collection.ItemsCount); err != nil {
			return nil, err
		}
		result = append(result, collection)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetCollection returns the owned collection with its items. The second
// return value is false when no collection matches the (id, owner) pair.
func (db *PostgresDB) GetCollection(
	ctx context.Context,
	userID, collectionID int64,
) (*models.CollectionWithItems, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT
				c.id,
				c.title,
				COUNT(ci.id) AS items_count
			FROM collections c
				LEFT JOIN collection_items ci ON ci.collection_id = c.id
			WHERE c.id = $1 AND c.user_id = $2
			GROUP BY c.id
		`,
		collectionID,
		userID,
	)
	result := &models.CollectionWithItems{}
	result.UserID = userID
	err := row.Scan(&result.ID, &result.Title, &result.ItemsCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	result.Items, err = db.ListItems(ctx, result.ID)
	if err != nil {
		return nil, false, err
	}

	return result, true, nil
}

// CreateCollection inserts a new collection owned by userID.
func (db *PostgresDB) CreateCollection(
	ctx context.Context,
	userID int64,
	title string,
	transaction *sql.Tx,
) (int64, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	row := database.QueryRowContext(
		ctx,
		`INSERT INTO collections (user_id, title) VALUES ($1, $2) RETURNING id`,
		userID,
		title,
	)
	var collectionID int64
	if err := row.Scan(&collectionID); err != nil {
		return 0, err
	}

	return collectionID, nil
}

// UpdateCollection writes the non-nil fields of the patch into the owned
// collection. Returns false when zero rows matched.
func (db *PostgresDB) UpdateCollection(
	ctx context.Context,
	userID, collectionID int64,
	patch models.CollectionPatch,
) (bool, error) {
	setClauses := []string{}
	args := []interface{}{}

	if patch.Title != nil {
		args = append(args, *patch.Title)
		setClauses = append(setClauses, fmt.Sprintf("title = $%d", len(args)))
	}

	if len(setClauses) == 0 {
		return true, nil
	}

	args = append(args, collectionID, userID)
	result, err := db.database.ExecContext(
		ctx,
		fmt.Sprintf(
			`UPDATE collections SET %s WHERE id = $%d AND user_id = $%d`,
			strings.Join(setClauses, ", "),
			len(args)-1,
			len(args),
		),
		args...,
	)
	if err != nil {
		return false, err
	}

	return rowsMatched(result)
}

// DeleteCollection removes the owned collection together with all of its
// items in a single transaction. Returns false when no owned row matched.
func (db *PostgresDB) DeleteCollection(ctx context.Context, userID, collectionID int64) (bool, error) {
	transaction, err := db.database.Begin()
	if err != nil {
		return false, err
	}

	_, err = transaction.ExecContext(
		ctx,
		`
			DELETE FROM collection_items
				WHERE collection_id IN (
					SELECT id FROM collections WHERE id = $1 AND user_id = $2
				)
		`,
		collectionID,
		userID,
	)
	if err != nil {
		if err2 := transaction.Rollback(); err2 != nil {
			return false, err2
		}
		return false, err
	}

	result, err := transaction.ExecContext(
		ctx,
		`DELETE FROM collections WHERE id = $1 AND user_id = $2`,
		collectionID,
		userID,
	)
	if err != nil {
		if err2 := transaction.Rollback(); err2 != nil {
			return false, err2
		}
		return false, err
	}

	found, err := rowsMatched(result)
	if err != nil {
		if err2 := transaction.Rollback(); err2 != nil {
			return false, err2
		}
		return false, err
	}

	if err := transaction.Commit(); err != nil {
		return false, err
	}

	return found, nil
}

// CollectionExists reports whether the collection exists and is owned by
// userID.
func (db *PostgresDB) CollectionExists(ctx context.Context, userID, collectionID int64) (bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM collections WHERE id = $1 AND user_id = $2`,
		collectionID,
		userID,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}

	return count > 0, nil
}

// ListItems returns the items of a collection ordered by ID. Ownership of
// the collection must already be established by the caller.
func (db *PostgresDB) ListItems(ctx context.Context, collectionID int64) ([]models.Item, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, collection_id, name, description, image, rarity, price
				FROM collection_items
				WHERE collection_id = $1
				ORDER BY id
		`,
		collectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Item{}
	for rows.Next() {
		var item models.Item
		err := rows.Scan(
			&item.ID,
			&item.CollectionID,
			&item.Name,
			&item.Description,
			&item.Image,
			&item.Rarity,
			&item.Price,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetItem fetches a single item; ownership is resolved by joining through
// the parent collection.
func (db *PostgresDB) GetItem(ctx context.Context, userID, itemID int64) (*models.Item, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT ci.id, ci.collection_id, ci.name, ci.description, ci.image, ci.rarity, ci.price
				FROM collection_items ci
					JOIN collections c ON c.id = ci.collection_id
				WHERE ci.id = $1 AND c.user_id = $2
		`,
		itemID,
		userID,
	)
	item := &models.Item{}
	err := row.Scan(
		&item.ID,
		&item.CollectionID,
		&item.Name,
		&item.Description,
		&item.Image,
		&item.Rarity,
		&item.Price,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return item, true, nil
}

// CreateItem inserts the item under its parent collection in a single
// statement whose predicate verifies ownership, so there is no gap between
// the check and the insert. Returns false when the collection is not owned.
func (db *PostgresDB) CreateItem(ctx context.Context, userID int64, item *models.Item) (int64, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			INSERT INTO collection_items (collection_id, name, description, image, rarity, price)
				SELECT c.id, $3, $4, $5, $6, $7
					FROM collections c
					WHERE c.id = $1 AND c.user_id = $2
				RETURNING id
		`,
		item.CollectionID,
		userID,
		item.Name,
		item.Description,
		item.Image,
		item.Rarity,
		item.Price,
	)
	var itemID int64
	err := row.Scan(&itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}

	return itemID, true, nil
}

// ReplaceItem overwrites every mutable field of the owned item. Fields the
// caller left empty overwrite the stored values with zero values.
func (db *PostgresDB) ReplaceItem(ctx context.Context, userID, itemID int64, item models.Item) (bool, error) {
	result, err := db.database.ExecContext(
		ctx,
		`
			UPDATE collection_items
				SET name = $3, description = $4, image = $5, rarity = $6, price = $7
				WHERE id = $1
					AND collection_id IN (SELECT id FROM collections WHERE user_id = $2)
		`,
		itemID,
		userID,
		item.Name,
		item.Description,
		item.Image,
		item.Rarity,
		item.Price,
	)
	if err != nil {
		return false, err
	}

	return rowsMatched(result)
}

// PatchItem writes only the non-nil fields of the patch into the owned
// item. The caller is responsible for rejecting empty patches upstream.
func (db *PostgresDB) PatchItem(ctx context.Context, userID, itemID int64, patch models.ItemPatch) (bool, error) {
	setClauses := []string{}
	args := []interface{}{itemID, userID}

	appendClause := func(column string, value interface{}) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		appendClause("name", *patch.Name)
	}
	if patch.Description != nil {
		appendClause("description", *patch.Description)
	}
	if patch.Image != nil {
		appendClause("image", *patch.Image)
	}
	if patch.Rarity != nil {
		appendClause("rarity", *patch.Rarity)
	}
	if patch.Price != nil {
		appendClause("price", *patch.Price)
	}

	if len(setClauses) == 0 {
		return true, nil
	}

	result, err := db.database.ExecContext(
		ctx,
		fmt.Sprintf(
			`
				UPDATE collection_items
					SET %s
					WHERE id = $1
						AND collection_id IN (SELECT id FROM collections WHERE user_id = $2)
			`,
			strings.Join(setClauses, ", "),
		),
		args...,
	)
	if err != nil {
		return false, err
	}

	return rowsMatched(result)
}

// DeleteItem removes the owned item with a single ownership-joined DELETE,
// collapsing the existence check and the delete into one atomic statement.
func (db *PostgresDB) DeleteItem(ctx context.Context, userID, itemID int64) (bool, error) {
	result, err := db.database.ExecContext(
		ctx,
		`
			DELETE FROM collection_items
				WHERE id IN (
					SELECT ci.id
						FROM collection_items ci
							JOIN collections c ON c.id = ci.collection_id
						WHERE ci.id = $1 AND c.user_id = $2
				)
		`,
		itemID,
		userID,
	)
	if err != nil {
		return false, err
	}

	return rowsMatched(result)
}

// CommitTransaction commits the given SQL transaction.
func (db *PostgresDB) CommitTransaction(transaction *sql.Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while committing transaction: %v", r)
		}
	}()

	return transaction.Commit()
}

// RollbackTransaction rolls back the given SQL transaction.
func (db *PostgresDB) RollbackTransaction(transaction *sql.Tx) error {
	return transaction.Rollback()
}

// BeginTransaction starts a new SQL transaction and returns it.
// The caller is responsible for committing or rolling it back.
func (db *PostgresDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func rowsMatched(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf("error while `db.database.ExecContext()` calling: %w", err)
	}
	return nil
}
