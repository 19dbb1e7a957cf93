package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lolmeida/kstack/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS environments (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS stacks (
	id INTEGER PRIMARY KEY,
	environment_id INTEGER NOT NULL REFERENCES environments(id),
	name TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	description TEXT NOT NULL DEFAULT '',
	config TEXT,
	UNIQUE (environment_id, name)
);
CREATE TABLE IF NOT EXISTS apps (
	id INTEGER PRIMARY KEY,
	stack_id INTEGER NOT NULL REFERENCES stacks(id),
	name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL DEFAULT 1,
	deployment_priority INTEGER NOT NULL DEFAULT 0,
	image_repository TEXT NOT NULL DEFAULT '',
	image_tag TEXT NOT NULL DEFAULT '',
	default_config TEXT,
	default_ports TEXT,
	default_resources TEXT,
	health_check_path TEXT,
	readiness_check_path TEXT
);
CREATE TABLE IF NOT EXISTS app_manifests (
	id INTEGER PRIMARY KEY,
	app_id INTEGER NOT NULL REFERENCES apps(id),
	manifest_type TEXT NOT NULL,
	required INTEGER NOT NULL DEFAULT 0,
	creation_priority INTEGER NOT NULL DEFAULT 0,
	default_config TEXT,
	template_overrides TEXT,
	creation_condition TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	UNIQUE (app_id, manifest_type)
);
CREATE TABLE IF NOT EXISTS manifest_instances (
	id INTEGER PRIMARY KEY,
	app_id INTEGER NOT NULL REFERENCES apps(id),
	kind TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	metadata_name TEXT NOT NULL DEFAULT '',
	metadata_labels TEXT,
	component TEXT NOT NULL DEFAULT '',
	annotations TEXT,
	spec TEXT
);
CREATE TABLE IF NOT EXISTS service_categories (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE,
	display_name TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS manifest_defaults (
	id INTEGER PRIMARY KEY,
	category_id INTEGER NOT NULL REFERENCES service_categories(id),
	manifest_type TEXT NOT NULL,
	required INTEGER NOT NULL DEFAULT 0,
	creation_priority INTEGER NOT NULL DEFAULT 0,
	creation_condition TEXT NOT NULL DEFAULT '',
	default_config TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	UNIQUE (category_id, manifest_type)
);
CREATE TABLE IF NOT EXISTS auth_defaults (
	id INTEGER PRIMARY KEY,
	category_id INTEGER NOT NULL REFERENCES service_categories(id),
	auth_type TEXT NOT NULL,
	default_config TEXT,
	is_active INTEGER NOT NULL DEFAULT 1
);
`

// SQLiteStore is a ConfigStore backed by a SQLite database file.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// OpenSQLite opens (and, unless readOnly, creates and migrates) the database at path.
func OpenSQLite(path string, readOnly bool) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is empty", model.ErrBadRequest)
	}

	dsn := path
	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		u := url.URL{Scheme: "file", Path: path}
		q := u.Query()
		q.Set("mode", "ro")
		q.Set("_busy_timeout", "5000")
		u.RawQuery = q.Encode()
		dsn = u.String()
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, readOnly: readOnly}
	if !readOnly {
		if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Import replaces the database contents with the catalog in one transaction.
func (s *SQLiteStore) Import(ctx context.Context, c *Catalog) (err error) {
	if s.readOnly {
		return fmt.Errorf("%w: store is read-only", model.ErrBadRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"auth_defaults", "manifest_defaults", "service_categories", "manifest_instances", "app_manifests", "apps", "stacks", "environments"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, e := range c.Environments {
		if _, err = tx.ExecContext(ctx, `INSERT INTO environments (id, name, is_active) VALUES (?, ?, ?)`,
			nullableID(e.ID), e.Name, e.IsActive); err != nil {
			return fmt.Errorf("insert environment %q: %w", e.Name, err)
		}
	}
	for _, st := range c.Stacks {
		if _, err = tx.ExecContext(ctx, `INSERT INTO stacks (id, environment_id, name, enabled, description, config) VALUES (?, ?, ?, ?, ?, ?)`,
			nullableID(st.ID), st.EnvironmentID, st.Name, st.Enabled, st.Description, encodeJSON(st.Config)); err != nil {
			return fmt.Errorf("insert stack %q: %w", st.Name, err)
		}
	}
	for _, a := range c.Apps {
		if _, err = tx.ExecContext(ctx, `INSERT INTO apps (id, stack_id, name, category, enabled, deployment_priority, image_repository, image_tag, default_config, default_ports, default_resources, health_check_path, readiness_check_path) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullableID(a.ID), a.StackID, a.Name, a.Category, a.Enabled, a.DeploymentPriority, a.DefaultImageRepository, a.DefaultImageTag,
			encodeJSON(a.DefaultConfig), encodeJSON(a.DefaultPorts), encodeJSON(a.DefaultResources), nullableString(a.HealthCheckPath), nullableString(a.ReadinessCheckPath)); err != nil {
			return fmt.Errorf("insert app %q: %w", a.Name, err)
		}
	}
	for _, m := range c.AppManifests {
		if _, err = tx.ExecContext(ctx, `INSERT INTO app_manifests (id, app_id, manifest_type, required, creation_priority, default_config, template_overrides, creation_condition, description) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullableID(m.ID), m.AppID, string(m.ManifestType), m.Required, m.CreationPriority, encodeJSON(m.DefaultConfig), encodeJSON(m.TemplateOverrides), m.CreationCondition, m.Description); err != nil {
			return fmt.Errorf("insert app manifest %s for app %d: %w", m.ManifestType, m.AppID, err)
		}
	}
	for _, i := range c.ManifestInstances {
		if _, err = tx.ExecContext(ctx, `INSERT INTO manifest_instances (id, app_id, kind, enabled, metadata_name, metadata_labels, component, annotations, spec) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullableID(i.ID), i.AppID, string(i.Kind), i.Enabled, i.MetadataName, encodeJSON(i.MetadataLabels), i.Component, encodeJSON(i.Annotations), encodeJSON(i.Spec)); err != nil {
			return fmt.Errorf("insert %s instance for app %d: %w", i.Kind, i.AppID, err)
		}
	}
	for _, cat := range c.Categories {
		if _, err = tx.ExecContext(ctx, `INSERT INTO service_categories (id, name, display_name, is_active) VALUES (?, ?, ?, ?)`,
			nullableID(cat.ID), cat.Name, cat.DisplayName, cat.IsActive); err != nil {
			return fmt.Errorf("insert category %q: %w", cat.Name, err)
		}
	}
	for _, d := range c.ManifestDefaults {
		if _, err = tx.ExecContext(ctx, `INSERT INTO manifest_defaults (id, category_id, manifest_type, required, creation_priority, creation_condition, default_config, is_active) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			nullableID(d.ID), d.CategoryID, string(d.ManifestType), d.Required, d.CreationPriority, d.CreationCondition, encodeJSON(d.DefaultConfig), d.IsActive); err != nil {
			return fmt.Errorf("insert manifest default %s for category %d: %w", d.ManifestType, d.CategoryID, err)
		}
	}
	for _, a := range c.AuthDefaults {
		if _, err = tx.ExecContext(ctx, `INSERT INTO auth_defaults (id, category_id, auth_type, default_config, is_active) VALUES (?, ?, ?, ?, ?)`,
			nullableID(a.ID), a.CategoryID, a.AuthType, encodeJSON(a.DefaultConfig), a.IsActive); err != nil {
			return fmt.Errorf("insert auth default %q for category %d: %w", a.AuthType, a.CategoryID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEnvironments(ctx context.Context) ([]model.Environment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, is_active FROM environments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query environments: %w", err)
	}
	defer rows.Close()

	envs := make([]model.Environment, 0)
	for rows.Next() {
		var e model.Environment
		if err := rows.Scan(&e.ID, &e.Name, &e.IsActive); err != nil {
			return nil, fmt.Errorf("scan environment: %w", err)
		}
		envs = append(envs, e)
	}
	return envs, rows.Err()
}

func (s *SQLiteStore) GetEnvironment(ctx context.Context, id int64) (*model.Environment, error) {
	var e model.Environment
	err := s.db.QueryRowContext(ctx, `SELECT id, name, is_active FROM environments WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &e.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", model.ErrEnvironmentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query environment %d: %w", id, err)
	}
	return &e, nil
}

func (s *SQLiteStore) ListStacks(ctx context.Context, environmentID int64) ([]model.Stack, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, environment_id, name, enabled, description, config FROM stacks WHERE environment_id = ? ORDER BY name`,
		environmentID)
	if err != nil {
		return nil, fmt.Errorf("query stacks: %w", err)
	}
	defer rows.Close()

	stacks := make([]model.Stack, 0)
	for rows.Next() {
		var (
			st     model.Stack
			config sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.EnvironmentID, &st.Name, &st.Enabled, &st.Description, &config); err != nil {
			return nil, fmt.Errorf("scan stack: %w", err)
		}
		if st.Config, err = decodeMap(config); err != nil {
			return nil, fmt.Errorf("decode stack %q config: %w", st.Name, err)
		}
		stacks = append(stacks, st)
	}
	return stacks, rows.Err()
}

func (s *SQLiteStore) GetStack(ctx context.Context, environmentID int64, name string) (*model.Stack, error) {
	var (
		st     model.Stack
		config sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, environment_id, name, enabled, description, config FROM stacks WHERE environment_id = ? AND name = ?`,
		environmentID, name).Scan(&st.ID, &st.EnvironmentID, &st.Name, &st.Enabled, &st.Description, &config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q in environment %d", model.ErrStackNotFound, name, environmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("query stack %q: %w", name, err)
	}
	if st.Config, err = decodeMap(config); err != nil {
		return nil, fmt.Errorf("decode stack %q config: %w", name, err)
	}
	return &st, nil
}

func (s *SQLiteStore) ListApps(ctx context.Context, stackID int64) ([]model.App, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stack_id, name, category, enabled, deployment_priority, image_repository, image_tag,
		       default_config, default_ports, default_resources, health_check_path, readiness_check_path
		FROM apps WHERE stack_id = ? ORDER BY deployment_priority, name`, stackID)
	if err != nil {
		return nil, fmt.Errorf("query apps: %w", err)
	}
	defer rows.Close()

	apps := make([]model.App, 0)
	for rows.Next() {
		var (
			a                      model.App
			cfg, ports, resources  sql.NullString
			healthCheck, readiness sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.StackID, &a.Name, &a.Category, &a.Enabled, &a.DeploymentPriority,
			&a.DefaultImageRepository, &a.DefaultImageTag, &cfg, &ports, &resources, &healthCheck, &readiness); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		if a.DefaultConfig, err = decodeMap(cfg); err != nil {
			return nil, fmt.Errorf("decode app %q config: %w", a.Name, err)
		}
		if a.DefaultPorts, err = decodeAny(ports); err != nil {
			return nil, fmt.Errorf("decode app %q ports: %w", a.Name, err)
		}
		if a.DefaultResources, err = decodeAny(resources); err != nil {
			return nil, fmt.Errorf("decode app %q resources: %w", a.Name, err)
		}
		a.HealthCheckPath = stringPtr(healthCheck)
		a.ReadinessCheckPath = stringPtr(readiness)
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *SQLiteStore) ListAppManifests(ctx context.Context, appID int64) ([]model.AppManifest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_id, manifest_type, required, creation_priority, default_config, template_overrides, creation_condition, description
		FROM app_manifests WHERE app_id = ? ORDER BY creation_priority, id`, appID)
	if err != nil {
		return nil, fmt.Errorf("query app manifests: %w", err)
	}
	defer rows.Close()

	result := make([]model.AppManifest, 0)
	for rows.Next() {
		var (
			m             model.AppManifest
			mt            string
			cfg, override sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.AppID, &mt, &m.Required, &m.CreationPriority, &cfg, &override, &m.CreationCondition, &m.Description); err != nil {
			return nil, fmt.Errorf("scan app manifest: %w", err)
		}
		m.ManifestType = model.ManifestType(mt)
		if m.DefaultConfig, err = decodeMap(cfg); err != nil {
			return nil, fmt.Errorf("decode app manifest %d config: %w", m.ID, err)
		}
		if m.TemplateOverrides, err = decodeMap(override); err != nil {
			return nil, fmt.Errorf("decode app manifest %d overrides: %w", m.ID, err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) ListManifestInstances(ctx context.Context, appID int64) ([]model.ManifestInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_id, kind, enabled, metadata_name, metadata_labels, component, annotations, spec
		FROM manifest_instances WHERE app_id = ? ORDER BY id`, appID)
	if err != nil {
		return nil, fmt.Errorf("query manifest instances: %w", err)
	}
	defer rows.Close()

	result := make([]model.ManifestInstance, 0)
	for rows.Next() {
		var (
			inst                      model.ManifestInstance
			kind                      string
			labels, annotations, spec sql.NullString
		)
		if err := rows.Scan(&inst.ID, &inst.AppID, &kind, &inst.Enabled, &inst.MetadataName, &labels, &inst.Component, &annotations, &spec); err != nil {
			return nil, fmt.Errorf("scan manifest instance: %w", err)
		}
		inst.Kind = model.ManifestType(kind)
		if err := decodeInto(labels, &inst.MetadataLabels); err != nil {
			return nil, fmt.Errorf("decode instance %d labels: %w", inst.ID, err)
		}
		if err := decodeInto(annotations, &inst.Annotations); err != nil {
			return nil, fmt.Errorf("decode instance %d annotations: %w", inst.ID, err)
		}
		if inst.Spec, err = decodeMap(spec); err != nil {
			return nil, fmt.Errorf("decode instance %d spec: %w", inst.ID, err)
		}
		result = append(result, inst)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) ListManifestDefaults(ctx context.Context, category string) ([]model.ManifestDefault, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.category_id, d.manifest_type, d.required, d.creation_priority, d.creation_condition, d.default_config, d.is_active
		FROM manifest_defaults d JOIN service_categories c ON c.id = d.category_id
		WHERE c.name = ? COLLATE NOCASE
		ORDER BY d.creation_priority, d.id`, category)
	if err != nil {
		return nil, fmt.Errorf("query manifest defaults: %w", err)
	}
	defer rows.Close()

	result := make([]model.ManifestDefault, 0)
	for rows.Next() {
		var (
			d   model.ManifestDefault
			mt  string
			cfg sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.CategoryID, &mt, &d.Required, &d.CreationPriority, &d.CreationCondition, &cfg, &d.IsActive); err != nil {
			return nil, fmt.Errorf("scan manifest default: %w", err)
		}
		d.ManifestType = model.ManifestType(mt)
		if d.DefaultConfig, err = decodeMap(cfg); err != nil {
			return nil, fmt.Errorf("decode manifest default %d config: %w", d.ID, err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) ListAuthDefaults(ctx context.Context, category string) ([]model.AuthDefault, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.category_id, a.auth_type, a.default_config, a.is_active
		FROM auth_defaults a JOIN service_categories c ON c.id = a.category_id
		WHERE c.name = ? COLLATE NOCASE
		ORDER BY a.id`, category)
	if err != nil {
		return nil, fmt.Errorf("query auth defaults: %w", err)
	}
	defer rows.Close()

	result := make([]model.AuthDefault, 0)
	for rows.Next() {
		var (
			a   model.AuthDefault
			cfg sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.CategoryID, &a.AuthType, &cfg, &a.IsActive); err != nil {
			return nil, fmt.Errorf("scan auth default: %w", err)
		}
		if a.DefaultConfig, err = decodeMap(cfg); err != nil {
			return nil, fmt.Errorf("decode auth default %d config: %w", a.ID, err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *SQLiteStore) GetServiceCategory(ctx context.Context, name string) (*model.ServiceCategory, error) {
	var c model.ServiceCategory
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, display_name, is_active FROM service_categories WHERE name = ? COLLATE NOCASE`, name).
		Scan(&c.ID, &c.Name, &c.DisplayName, &c.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", model.ErrCategoryNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("query category %q: %w", name, err)
	}
	return &c, nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func encodeJSON(v any) any {
	if v == nil {
		return nil
	}
	switch m := v.(type) {
	case map[string]any:
		if m == nil {
			return nil
		}
	case map[string]string:
		if m == nil {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(data)
}

func decodeAny(ns sql.NullString) (any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeMap(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeInto(ns sql.NullString, target any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

var _ ConfigStore = (*SQLiteStore)(nil)
