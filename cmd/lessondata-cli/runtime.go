package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/yitongOE/LessonData/internal/blob"
	"github.com/yitongOE/LessonData/internal/config"
	"github.com/yitongOE/LessonData/internal/editor"
	"github.com/yitongOE/LessonData/internal/marketplace"
	"github.com/yitongOE/LessonData/internal/obs"
	"github.com/yitongOE/LessonData/internal/store"
)

// runtime 按需初始化各子命令共用的依赖，只打开实际用到的部分。
type runtime struct {
	configPath string

	cfg    *config.Config
	db     *sql.DB
	store  *store.Store
	blobs  *blob.Store
	market *marketplace.Repository
}

func (r *runtime) Config() (config.Config, error) {
	if r.cfg != nil {
		return *r.cfg, nil
	}
	if r.configPath != "" {
		if err := os.Setenv(config.FileEnv, r.configPath); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("加载配置失败: %w", err)
	}
	slog.SetDefault(obs.NewLogger(cfg.Env))
	r.cfg = &cfg
	return cfg, nil
}

func (r *runtime) Store() (*store.Store, error) {
	if r.store != nil {
		return r.store, nil
	}
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	db, dialect, err := store.OpenDB(cfg.Env, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	switch dialect {
	case store.DialectMySQL:
		err = store.ApplyMigrations(db)
	case store.DialectSQLite:
		err = store.EnsureSQLiteSchema(db)
	default:
		err = fmt.Errorf("未知数据库方言: %s", dialect)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	r.db = db
	r.store = store.New(db)
	r.store.SetDialect(dialect)
	return r.store, nil
}

func (r *runtime) Blobs() (*blob.Store, error) {
	if r.blobs != nil {
		return r.blobs, nil
	}
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	r.blobs = blob.New(cfg.Blob.Dir)
	return r.blobs, nil
}

func (r *runtime) Marketplace() (*marketplace.Repository, error) {
	if r.market != nil {
		return r.market, nil
	}
	blobs, err := r.Blobs()
	if err != nil {
		return nil, err
	}
	r.market = marketplace.NewRepository(blobs, r.cfg.Marketplace.Games)
	return r.market, nil
}

// Editor 返回只用于查看的会话管理器；命令行不会长时间持有会话。
func (r *runtime) Editor() (*editor.Manager, error) {
	market, err := r.Marketplace()
	if err != nil {
		return nil, err
	}
	return editor.NewManager(market, market, 0), nil
}

func (r *runtime) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}
