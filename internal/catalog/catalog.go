// Package catalog maps databases and tables onto directories under a root:
// <root>/<db>/<table>/<table>_TREE and <table>_BLOCKS.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tuannm99/rowstore/internal/errs"
	"github.com/tuannm99/rowstore/internal/storage"
)

// File name suffixes of a table's index and block files.
const (
	TreeSuffix   = "_TREE"
	BlocksSuffix = "_BLOCKS"
)

// Paths locates the files of one table.
type Paths struct {
	Dir    string
	Tree   string
	Blocks string
}

// Catalog resolves databases and tables to paths below its root. It holds no
// state besides the root, so one value can be shared freely.
type Catalog struct {
	root string
}

// New ensures root exists and returns a catalog over it.
func New(root string) (*Catalog, error) {
	if err := os.MkdirAll(root, storage.FileMode0755); err != nil {
		return nil, errs.IO(fmt.Errorf("catalog: create root %s: %w", root, err))
	}
	return &Catalog{root: root}, nil
}

func (c *Catalog) Root() string { return c.root }

// validName rejects names that would escape or alias a directory.
func validName(kind, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("catalog: %s name %q: %w", kind, name, errs.ErrInvalidValue)
	}
	return nil
}

func (c *Catalog) dbDir(db string) string {
	return filepath.Join(c.root, db)
}

func isDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errs.IO(err)
	}
	return info.IsDir(), nil
}

// CreateDatabase makes the directory for a new database. An existing entry
// with the same name is ErrAlreadyExists.
func (c *Catalog) CreateDatabase(name string) error {
	if err := validName("database", name); err != nil {
		return err
	}
	dir := c.dbDir(name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("catalog: database %s: %w", name, errs.ErrAlreadyExists)
	}
	if err := os.Mkdir(dir, storage.FileMode0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("catalog: database %s: %w", name, errs.ErrAlreadyExists)
		}
		return errs.IO(err)
	}
	slog.Info("catalog.create_database", "database", name)
	return nil
}

// DropDatabase deletes the database directory and everything below it.
func (c *Catalog) DropDatabase(name string) error {
	if err := validName("database", name); err != nil {
		return err
	}
	dir := c.dbDir(name)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("catalog: database %s: %w", name, errs.ErrNotFound)
	}
	if err != nil {
		return errs.IO(err)
	}
	if !info.IsDir() {
		return fmt.Errorf("catalog: database %s is not a directory: %w", name, errs.ErrCorrupted)
	}
	if err := removeTree(dir); err != nil {
		return err
	}
	slog.Info("catalog.drop_database", "database", name)
	return nil
}

// removeTree deletes dir with an explicit work list: files go first, a
// directory is removed once it has been emptied.
func removeTree(dir string) error {
	stack := []string{dir}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		entries, err := os.ReadDir(top)
		if err != nil {
			return errs.IO(err)
		}
		pushed := false
		for _, e := range entries {
			p := filepath.Join(top, e.Name())
			if e.IsDir() {
				stack = append(stack, p)
				pushed = true
				continue
			}
			if err := os.Remove(p); err != nil {
				return errs.IO(err)
			}
		}
		if pushed {
			continue
		}
		if err := os.Remove(top); err != nil {
			return errs.IO(err)
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

// DatabaseExists reports whether name is a database directory. Invalid
// names simply do not exist.
func (c *Catalog) DatabaseExists(name string) (bool, error) {
	if validName("database", name) != nil {
		return false, nil
	}
	return isDir(c.dbDir(name))
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.IO(err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	slices.Sort(out)
	return out, nil
}

// ListDatabases returns database names in ascending order.
func (c *Catalog) ListDatabases() ([]string, error) {
	return listDirs(c.root)
}

// ListTables returns the table directories of db in ascending order.
func (c *Catalog) ListTables(db string) ([]string, error) {
	if err := c.requireDatabase(db); err != nil {
		return nil, err
	}
	return listDirs(c.dbDir(db))
}

func (c *Catalog) requireDatabase(db string) error {
	ok, err := c.DatabaseExists(db)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("catalog: database %s: %w", db, errs.ErrNotFound)
	}
	return nil
}

// TablePaths returns where the table's files live, whether or not they exist.
func (c *Catalog) TablePaths(db, table string) Paths {
	dir := filepath.Join(c.dbDir(db), table)
	return Paths{
		Dir:    dir,
		Tree:   filepath.Join(dir, table+TreeSuffix),
		Blocks: filepath.Join(dir, table+BlocksSuffix),
	}
}

// TableExists reports whether the table directory is present. It does not
// look at the files inside; see CheckTable.
func (c *Catalog) TableExists(db, table string) (bool, error) {
	if validName("database", db) != nil || validName("table", table) != nil {
		return false, nil
	}
	return isDir(c.TablePaths(db, table).Dir)
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errs.IO(err)
	}
	return info.Mode().IsRegular(), nil
}

// CheckTable returns the table paths when both backing files are present.
// A missing database, table directory or pair of files is ErrNotFound; a
// table with only one of its files is ErrCorrupted.
func (c *Catalog) CheckTable(db, table string) (Paths, error) {
	if err := c.requireDatabase(db); err != nil {
		return Paths{}, err
	}
	ok, err := c.TableExists(db, table)
	if err != nil {
		return Paths{}, err
	}
	if !ok {
		return Paths{}, fmt.Errorf("catalog: table %s.%s: %w", db, table, errs.ErrNotFound)
	}

	p := c.TablePaths(db, table)
	hasTree, err := fileExists(p.Tree)
	if err != nil {
		return Paths{}, err
	}
	hasBlocks, err := fileExists(p.Blocks)
	if err != nil {
		return Paths{}, err
	}
	switch {
	case hasTree && hasBlocks:
		return p, nil
	case !hasTree && !hasBlocks:
		return Paths{}, fmt.Errorf("catalog: table %s.%s has no files: %w", db, table, errs.ErrNotFound)
	default:
		return Paths{}, fmt.Errorf("catalog: table %s.%s tree=%t blocks=%t: %w", db, table, hasTree, hasBlocks, errs.ErrCorrupted)
	}
}

// CreateTableDir makes the directory for a new table.
func (c *Catalog) CreateTableDir(db, table string) (Paths, error) {
	if err := validName("table", table); err != nil {
		return Paths{}, err
	}
	if err := c.requireDatabase(db); err != nil {
		return Paths{}, err
	}
	p := c.TablePaths(db, table)
	if err := os.Mkdir(p.Dir, storage.FileMode0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Paths{}, fmt.Errorf("catalog: table %s.%s: %w", db, table, errs.ErrAlreadyExists)
		}
		return Paths{}, errs.IO(err)
	}
	return p, nil
}

// RemoveTable deletes the table directory with its files.
func (c *Catalog) RemoveTable(db, table string) error {
	ok, err := c.TableExists(db, table)
	if err != nil {
		return err
	}
	if !ok {
		if err := c.requireDatabase(db); err != nil {
			return err
		}
		return fmt.Errorf("catalog: table %s.%s: %w", db, table, errs.ErrNotFound)
	}
	return removeTree(c.TablePaths(db, table).Dir)
}
