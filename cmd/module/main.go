package main

import (
	"go.viam.com/rdk/components/servo"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"

	cat "github.com/jbeats13/cat"
	"github.com/jbeats13/cat/models"
)

func main() {
	module.ModularMain(
		resource.APIModel{API: generic.API, Model: cat.Follower},
		resource.APIModel{API: servo.API, Model: models.MemoryServo},
	)
}
