package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Object 对象表，一行一个对象
type Object struct {
	Path      string    `gorm:"primaryKey;type:varchar(512)"`
	Body      []byte    `gorm:"type:longblob"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName 表名
func (Object) TableName() string {
	return "mailbox_objects"
}

// MySQLStore 以 MySQL 表作为对象存储
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore 连接数据库并迁移对象表
func NewMySQLStore(dsn string, log zerolog.Logger) (*MySQLStore, error) {
	// 设置日志
	gormLogger := logger.New(
		&log,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewMySQLStoreFromDB(db)
}

// NewMySQLStoreFromDB 使用已有连接，自动迁移对象表
func NewMySQLStoreFromDB(db *gorm.DB) (*MySQLStore, error) {
	if err := db.AutoMigrate(&Object{}); err != nil {
		return nil, fmt.Errorf("迁移对象表失败: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

// Put 单条 upsert
func (s *MySQLStore) Put(ctx context.Context, key string, data []byte) error {
	obj := Object{Path: key, Body: data}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&obj).Error
	if err != nil {
		return fmt.Errorf("写入 %s 失败: %w", s.URL(key), err)
	}
	return nil
}

func (s *MySQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var obj Object
	if err := s.db.WithContext(ctx).Where("path = ?", key).First(&obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("读取 %s 失败: %w", s.URL(key), err)
	}
	return obj.Body, nil
}

func (s *MySQLStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := s.db.WithContext(ctx).
		Model(&Object{}).
		Where("path LIKE ?", escapeLike(prefix)+"%").
		Order("path").
		Pluck("path", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("列举 %s 失败: %w", s.URL(prefix), err)
	}
	return keys, nil
}

func (s *MySQLStore) URL(key string) string {
	return joinURL("mysql://mailbox_objects", key)
}

func (s *MySQLStore) Driver() string {
	return "mysql"
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// escapeLike 转义 LIKE 通配符，MySQL 默认转义符为反斜杠
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
