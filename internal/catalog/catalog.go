// Package catalog serves the read-only reference data (zones, neighborhoods,
// services) used by registration and booking forms.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"planificanet/internal/model"
)

var ErrNotFound = errors.New("catalog entry not found")

// Source is anything that can list the catalog.
type Source interface {
	Zones(ctx context.Context) ([]model.Zone, error)
	Neighborhoods(ctx context.Context, zoneID int64) ([]model.Neighborhood, error)
	Services(ctx context.Context) ([]model.Service, error)
	Service(ctx context.Context, id int64) (*model.Service, error)
}

type zona struct {
	IDZona int64  `gorm:"column:id_zona;primaryKey"`
	Nombre string `gorm:"column:nombre"`
}

func (zona) TableName() string { return "zonas" }

type barrio struct {
	IDBarrio int64  `gorm:"column:id_barrio;primaryKey"`
	IDZona   int64  `gorm:"column:id_zona"`
	Nombre   string `gorm:"column:nombre"`
}

func (barrio) TableName() string { return "barrios" }

type servicio struct {
	IDServicio int64  `gorm:"column:id_servicio;primaryKey"`
	Nombre     string `gorm:"column:nombre"`
}

func (servicio) TableName() string { return "servicios" }

// DB reads the catalog tables through gorm.
type DB struct {
	db *gorm.DB
}

// Open wraps an existing connection; the schema is owned by store.Migrate.
func Open(conn *sql.DB, log *zap.Logger) (*DB, error) {
	gl := gormlogger.New(zap.NewStdLog(log.Named("gorm")), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Zones(ctx context.Context) ([]model.Zone, error) {
	var rows []zona
	if err := d.db.WithContext(ctx).Order("nombre").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Zone, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Zone{ID: r.IDZona, Name: r.Nombre})
	}
	return out, nil
}

func (d *DB) Neighborhoods(ctx context.Context, zoneID int64) ([]model.Neighborhood, error) {
	var rows []barrio
	err := d.db.WithContext(ctx).
		Where("id_zona = ?", zoneID).
		Order("nombre").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.Neighborhood, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Neighborhood{ID: r.IDBarrio, ZoneID: r.IDZona, Name: r.Nombre})
	}
	return out, nil
}

func (d *DB) Services(ctx context.Context) ([]model.Service, error) {
	var rows []servicio
	if err := d.db.WithContext(ctx).Order("nombre").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Service, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Service{ID: r.IDServicio, Name: r.Nombre})
	}
	return out, nil
}

func (d *DB) Service(ctx context.Context, id int64) (*model.Service, error) {
	var r servicio
	err := d.db.WithContext(ctx).First(&r, "id_servicio = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &model.Service{ID: r.IDServicio, Name: r.Nombre}, nil
}
