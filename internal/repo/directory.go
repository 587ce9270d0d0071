package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/autodealer/dealer_backend/pkg/constants"
)

const (
	usersTable          = "users"
	agenciesTable       = "agencies"
	clientProfilesTable = "client_profiles"
	vehiclesTable       = "vehicles"
)

var userColumns = []string{"id", "name", "email", "role", "agency_id"}

// UserClient reads the user directory.
type UserClient struct {
	drv dialect.Driver
}

func (c *UserClient) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	users, err := c.list(ctx, psql().Select(userColumns...).From(entsql.Table(usersTable)).Where(entsql.EQ("id", id)).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(users) == 0 {
		return nil, &NotFoundError{label: "user"}
	}
	return users[0], nil
}

// List returns the users with the given ids. Unknown ids are skipped.
func (c *UserClient) List(ctx context.Context, ids []uuid.UUID) ([]*User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	users, err := c.list(ctx, psql().Select(userColumns...).From(entsql.Table(usersTable)).Where(entsql.In("id", args...)))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// All returns every user ordered by id.
func (c *UserClient) All(ctx context.Context) ([]*User, error) {
	users, err := c.list(ctx, psql().Select(userColumns...).From(entsql.Table(usersTable)).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("all users: %w", err)
	}
	return users, nil
}

// StaffOfAgency returns the agents and managers attached to agencyID.
func (c *UserClient) StaffOfAgency(ctx context.Context, agencyID uuid.UUID) ([]*User, error) {
	sel := psql().Select(userColumns...).
		From(entsql.Table(usersTable)).
		Where(entsql.And(
			entsql.EQ("agency_id", agencyID),
			entsql.In("role", constants.UserRoleAgent, constants.UserRoleManager),
		)).
		OrderBy("id")
	users, err := c.list(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("agency staff: %w", err)
	}
	return users, nil
}

func (c *UserClient) list(ctx context.Context, sel *entsql.Selector) ([]*User, error) {
	var users []*User
	err := query(ctx, c.drv, sel, func(rows *entsql.Rows) error {
		var (
			u      User
			agency uuid.NullUUID
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &agency); err != nil {
			return fmt.Errorf("scan user: %w", err)
		}
		if agency.Valid {
			id := agency.UUID
			u.AgencyID = &id
		}
		users = append(users, &u)
		return nil
	})
	return users, err
}

// AgencyClient reads agencies.
type AgencyClient struct {
	drv dialect.Driver
}

func (c *AgencyClient) Get(ctx context.Context, id uuid.UUID) (*Agency, error) {
	sel := psql().Select("id", "name", "manager_id").
		From(entsql.Table(agenciesTable)).
		Where(entsql.EQ("id", id)).
		Limit(1)

	var found *Agency
	err := query(ctx, c.drv, sel, func(rows *entsql.Rows) error {
		var (
			a       Agency
			manager uuid.NullUUID
		)
		if err := rows.Scan(&a.ID, &a.Name, &manager); err != nil {
			return fmt.Errorf("scan agency: %w", err)
		}
		if manager.Valid {
			m := manager.UUID
			a.ManagerID = &m
		}
		found = &a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get agency: %w", err)
	}
	if found == nil {
		return nil, &NotFoundError{label: "agency"}
	}
	return found, nil
}

var clientProfileColumns = []string{"id", "user_id", "agency_id", "name", "email", "status", "created_at"}

// ClientProfileClient reads and creates CRM client profiles.
type ClientProfileClient struct {
	drv dialect.Driver
}

func (c *ClientProfileClient) Get(ctx context.Context, id uuid.UUID) (*ClientProfile, error) {
	return c.one(ctx, entsql.EQ("id", id))
}

// FindByUserAndAgency returns the profile linking userID to agencyID.
func (c *ClientProfileClient) FindByUserAndAgency(ctx context.Context, userID, agencyID uuid.UUID) (*ClientProfile, error) {
	return c.one(ctx, entsql.And(entsql.EQ("user_id", userID), entsql.EQ("agency_id", agencyID)))
}

func (c *ClientProfileClient) Create(ctx context.Context, p *ClientProfile) error {
	ins := psql().Insert(clientProfilesTable).
		Columns(clientProfileColumns...).
		Values(p.ID, nullUUID(p.UserID), p.AgencyID, p.Name, p.Email, p.Status, p.CreatedAt)
	if _, err := exec(ctx, c.drv, ins); err != nil {
		return fmt.Errorf("insert client profile: %w", err)
	}
	return nil
}

func (c *ClientProfileClient) one(ctx context.Context, pred *entsql.Predicate) (*ClientProfile, error) {
	sel := psql().Select(clientProfileColumns...).
		From(entsql.Table(clientProfilesTable)).
		Where(pred).
		Limit(1)

	var found *ClientProfile
	err := query(ctx, c.drv, sel, func(rows *entsql.Rows) error {
		var (
			p    ClientProfile
			user uuid.NullUUID
		)
		if err := rows.Scan(&p.ID, &user, &p.AgencyID, &p.Name, &p.Email, &p.Status, &p.CreatedAt); err != nil {
			return fmt.Errorf("scan client profile: %w", err)
		}
		if user.Valid {
			u := user.UUID
			p.UserID = &u
		}
		found = &p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get client profile: %w", err)
	}
	if found == nil {
		return nil, &NotFoundError{label: "client profile"}
	}
	return found, nil
}

var vehicleColumns = []string{"id", "agency_id", "make", "model", "year", "price", "mileage", "condition", "features"}

// VehicleClient reads vehicle listings.
type VehicleClient struct {
	drv dialect.Driver
}

func (c *VehicleClient) Get(ctx context.Context, id uuid.UUID) (*Vehicle, error) {
	sel := psql().Select(vehicleColumns...).
		From(entsql.Table(vehiclesTable)).
		Where(entsql.EQ("id", id)).
		Limit(1)

	var found *Vehicle
	err := query(ctx, c.drv, sel, func(rows *entsql.Rows) error {
		var (
			v         Vehicle
			condition sql.NullString
			features  []byte
		)
		if err := rows.Scan(&v.ID, &v.AgencyID, &v.Make, &v.Model, &v.Year, &v.Price, &v.Mileage, &condition, &features); err != nil {
			return fmt.Errorf("scan vehicle: %w", err)
		}
		v.Condition = condition.String
		if len(features) > 0 {
			if err := json.Unmarshal(features, &v.Features); err != nil {
				return fmt.Errorf("decode features: %w", err)
			}
		}
		found = &v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	if found == nil {
		return nil, &NotFoundError{label: "vehicle"}
	}
	return found, nil
}
