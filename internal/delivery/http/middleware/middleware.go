package middleware

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type MiddlewareConfig struct {
	Log    *logrus.Logger
	Config *viper.Viper
}

type Middleware struct {
	Log    *logrus.Logger
	Config *viper.Viper

	jwtSecret           []byte
	allowHeaderIdentity bool
}

func NewMiddleware(c *MiddlewareConfig) *Middleware {
	if c == nil {
		return &Middleware{Log: logrus.StandardLogger()}
	}

	m := &Middleware{
		Log:    c.Log,
		Config: c.Config,
	}
	if m.Log == nil {
		m.Log = logrus.StandardLogger()
	}
	if c.Config != nil {
		m.jwtSecret = []byte(c.Config.GetString("auth.jwt_secret"))
		m.allowHeaderIdentity = c.Config.GetBool("auth.allow_header_identity")
	}
	return m
}
