package global

import (
	"flyvemdm/backend/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	Config     config.Config
	Transports = config.NewTransports(false, false)
	Logger     zerolog.Logger
	Mdb        *gorm.DB
	Rdb        *redis.Client
)
