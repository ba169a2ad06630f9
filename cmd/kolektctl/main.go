// Command kolektctl is an interactive terminal client for the
// collections service. It keeps a session and a selected collection
// between commands and remembers the selection across restarts.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/kolekt/internal/client/api"
	"github.com/patric-chuzhbe/kolekt/internal/client/prefs"
	"github.com/patric-chuzhbe/kolekt/internal/client/selection"
	"github.com/patric-chuzhbe/kolekt/internal/client/session"
	"github.com/patric-chuzhbe/kolekt/internal/models"
)

type cli struct {
	api       *api.Client
	session   *session.Session
	selection *selection.Cache
	out       *bufio.Writer
}

func main() {
	serverAddr := pflag.StringP("server", "s", "http://localhost:8080", "address of the collections server")
	prefsFile := pflag.StringP("prefs", "p", ".kolektctl.json", "path of the preferences file")
	pflag.Parse()

	preferences, err := prefs.New(*prefsFile)
	if err != nil {
		log.Fatalf("cannot load preferences: %v", err)
	}

	apiClient := api.New(*serverAddr)
	c := &cli{
		api:       apiClient,
		session:   session.New(apiClient),
		selection: selection.New(apiClient, preferences),
		out:       bufio.NewWriter(os.Stdout),
	}

	c.run()
}

func (c *cli) run() {
	c.printf("kolektctl connected, type `help` for commands\n")
	c.out.Flush()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(c.out, "> ")
		c.out.Flush()

		if !scanner.Scan() {
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		command, args := fields[0], fields[1:]
		if command == "quit" || command == "exit" {
			return
		}

		if err := c.dispatch(context.Background(), command, args); err != nil {
			c.printf("error: %v\n", err)
		}
		c.out.Flush()
	}
}

func (c *cli) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "help":
		return c.help()
	case "ping":
		return c.ping(ctx)
	case "login":
		return c.login(ctx, args)
	case "logout":
		return c.logout(ctx)
	case "me":
		return c.me(ctx)
	case "collections":
		return c.collections(ctx)
	case "select":
		return c.selectCollection(ctx, args)
	case "current":
		return c.current(ctx)
	case "new-collection":
		return c.newCollection(ctx, args)
	case "rename-collection":
		return c.renameCollection(ctx, args)
	case "delete-collection":
		return c.deleteCollection(ctx, args)
	case "items":
		return c.items(ctx)
	case "item":
		return c.item(ctx, args)
	case "add-item":
		return c.addItem(ctx, args)
	case "replace-item":
		return c.replaceItem(ctx, args)
	case "patch-item":
		return c.patchItem(ctx, args)
	case "delete-item":
		return c.deleteItem(ctx, args)
	case "search":
		return c.search(ctx, args)
	}

	return fmt.Errorf("unknown command %q, type `help`", command)
}

func (c *cli) help() error {
	c.printf(`commands:
  login <username> <password>       start a session
  logout                            end the session
  me                                show the authenticated user
  ping                              check server liveness
  collections                       list collections
  select <id>                       open a collection
  current                           show the open collection with items
  new-collection <title...>         create a collection
  rename-collection <id> <title...> replace a collection title
  delete-collection <id>            delete a collection and its items
  items                             list items of the open collection
  item <id>                         show one item
  add-item <name> <rarity> <price> [description...]
  replace-item <id> <name> <rarity> <price> [description...]
  patch-item <id> key=value...      keys: name, description, image, rarity, price
  delete-item <id>                  delete an item
  search <text...>                  find items of the open collection
  quit                              leave
`)

	return nil
}

func (c *cli) ping(ctx context.Context) error {
	if err := c.api.Ping(ctx); err != nil {
		return err
	}
	c.printf("server is up\n")

	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <username> <password>")
	}

	usr, err := c.session.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	c.printf("logged in as %s (%s %s)\n", usr.Username, usr.FirstName, usr.LastName)

	selected, err := c.selection.Resolve(ctx)
	if errors.Is(err, selection.ErrNoCollections) {
		c.printf("no collections yet, create one with new-collection\n")

		return nil
	}
	if err != nil {
		return err
	}
	c.printf("opened collection #%d %q\n", selected.ID, selected.Title)

	return nil
}

func (c *cli) logout(ctx context.Context) error {
	if err := c.session.Logout(ctx); err != nil {
		return err
	}
	c.printf("logged out\n")

	return nil
}

func (c *cli) me(ctx context.Context) error {
	usr, err := c.session.Resolve(ctx)
	if err != nil {
		return err
	}
	c.printf("#%d %s (%s %s)\n", usr.ID, usr.Username, usr.FirstName, usr.LastName)

	return nil
}

func (c *cli) collections(ctx context.Context) error {
	collections, err := c.api.Collections(ctx)
	if err != nil {
		return err
	}

	if len(collections) == 0 {
		c.printf("no collections\n")

		return nil
	}

	for _, collection := range collections {
		c.printf("#%d %q (%d items)\n", collection.ID, collection.Title, collection.ItemsCount)
	}

	return nil
}

func (c *cli) selectCollection(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: select <id>")
	}
	collectionID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad collection id %q", args[0])
	}

	selected, err := c.selection.Select(ctx, collectionID)
	if err != nil {
		return err
	}
	c.printf("opened collection #%d %q\n", selected.ID, selected.Title)

	return nil
}

func (c *cli) current(ctx context.Context) error {
	selected, err := c.selection.Refresh(ctx)
	if err != nil {
		return err
	}

	c.printf("collection #%d %q\n", selected.ID, selected.Title)
	for _, item := range selected.Items {
		c.printItem(item)
	}

	return nil
}

func (c *cli) newCollection(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: new-collection <title...>")
	}

	created, err := c.api.CreateCollection(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	c.printf("created collection #%d %q\n", created.ID, created.Title)

	_, err = c.selection.Select(ctx, created.ID)

	return err
}

func (c *cli) renameCollection(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: rename-collection <id> <title...>")
	}
	collectionID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad collection id %q", args[0])
	}

	if err := c.api.RenameCollection(ctx, collectionID, strings.Join(args[1:], " ")); err != nil {
		return err
	}
	c.printf("renamed\n")

	_, err = c.selection.Refresh(ctx)

	return err
}

func (c *cli) deleteCollection(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: delete-collection <id>")
	}
	collectionID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad collection id %q", args[0])
	}

	if err := c.api.DeleteCollection(ctx, collectionID); err != nil {
		return err
	}
	c.printf("deleted collection #%d with all of its items\n", collectionID)

	if selected, ok := c.selection.Selected(); ok && selected.ID == collectionID {
		if _, err := c.selection.Resolve(ctx); err != nil && !errors.Is(err, selection.ErrNoCollections) {
			return err
		}
	}

	return nil
}

func (c *cli) items(ctx context.Context) error {
	selected, err := c.selection.Refresh(ctx)
	if err != nil {
		return err
	}

	if len(selected.Items) == 0 {
		c.printf("collection %q is empty\n", selected.Title)

		return nil
	}

	for _, item := range selected.Items {
		c.printItem(item)
	}

	return nil
}

func (c *cli) item(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: item <id>")
	}
	itemID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad item id %q", args[0])
	}

	item, err := c.api.Item(ctx, itemID)
	if err != nil {
		return err
	}
	c.printItem(*item)

	return nil
}

func (c *cli) addItem(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: add-item <name> <rarity> <price> [description...]")
	}

	selected, ok := c.selection.Selected()
	if !ok {
		return errors.New("no open collection, use select first")
	}

	price, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("bad price %q", args[2])
	}

	itemID, err := c.api.CreateItem(ctx, models.ItemCreateRequest{
		CollectionID: selected.ID,
		Name:         args[0],
		Rarity:       args[1],
		Price:        price,
		Description:  strings.Join(args[3:], " "),
	})
	if err != nil {
		return err
	}
	c.printf("created item #%d\n", itemID)

	_, err = c.selection.Refresh(ctx)

	return err
}

func (c *cli) replaceItem(ctx context.Context, args []string) error {
	if len(args) < 4 {
		return errors.New("usage: replace-item <id> <name> <rarity> <price> [description...]")
	}
	itemID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad item id %q", args[0])
	}
	price, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return fmt.Errorf("bad price %q", args[3])
	}

	err = c.api.ReplaceItem(ctx, itemID, models.ItemUpdateRequest{
		Name:        args[1],
		Rarity:      args[2],
		Price:       price,
		Description: strings.Join(args[4:], " "),
	})
	if err != nil {
		return err
	}
	c.printf("replaced item #%d\n", itemID)

	_, err = c.selection.Refresh(ctx)

	return err
}

func (c *cli) patchItem(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: patch-item <id> key=value...")
	}
	itemID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad item id %q", args[0])
	}

	var patch models.ItemPatch
	for _, assignment := range args[1:] {
		key, value, found := strings.Cut(assignment, "=")
		if !found {
			return fmt.Errorf("expected key=value, got %q", assignment)
		}

		switch key {
		case "name":
			patch.Name = &value
		case "description":
			patch.Description = &value
		case "image":
			patch.Image = &value
		case "rarity":
			patch.Rarity = &value
		case "price":
			price, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("bad price %q", value)
			}
			patch.Price = &price
		default:
			return fmt.Errorf("unknown field %q", key)
		}
	}

	if err := c.api.PatchItem(ctx, itemID, patch); err != nil {
		return err
	}
	c.printf("patched item #%d\n", itemID)

	_, err = c.selection.Refresh(ctx)

	return err
}

func (c *cli) deleteItem(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: delete-item <id>")
	}
	itemID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad item id %q", args[0])
	}

	if err := c.api.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	c.printf("deleted item #%d\n", itemID)

	_, err = c.selection.Refresh(ctx)

	return err
}

func (c *cli) search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: search <text...>")
	}

	selected, err := c.selection.Refresh(ctx)
	if err != nil {
		return err
	}

	query := strings.ToLower(strings.Join(args, " "))
	matches := funk.Filter(selected.Items, func(item models.Item) bool {
		return strings.Contains(strings.ToLower(item.Name), query) ||
			strings.Contains(strings.ToLower(item.Description), query)
	}).([]models.Item)

	if len(matches) == 0 {
		c.printf("nothing found in %q\n", selected.Title)

		return nil
	}

	for _, item := range matches {
		c.printItem(item)
	}

	return nil
}

func (c *cli) printItem(item models.Item) {
	c.printf("#%d %s [%s] %.2f", item.ID, item.Name, item.Rarity, item.Price)
	if item.Description != "" {
		c.printf(" - %s", item.Description)
	}
	c.printf("\n")
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
