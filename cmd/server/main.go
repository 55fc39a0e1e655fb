package main

import (
	"github.com/pharmakg/sentinel/internal/server"
	"github.com/pharmakg/sentinel/internal/util"
	"github.com/pharmakg/sentinel/pkg/logger"
	"github.com/pharmakg/sentinel/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	logger.Init(console.New(console.Params{Debug: debug}))

	server.Init()
}
