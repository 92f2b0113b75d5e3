package main

import (
	"github.com/nfrund/courier/internal/server"
)

func main() {
	s := server.New()
	s.RegisterRoutes()
	s.Start(s.Cfg.HTTPAddr)
}
