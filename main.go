// file: main.go
package main

import (
	"log"

	"github.com/noob-master-jpb/CTFd/config"
	"github.com/noob-master-jpb/CTFd/controllers"
	"github.com/noob-master-jpb/CTFd/database"
	"github.com/noob-master-jpb/CTFd/routes"
	"github.com/noob-master-jpb/CTFd/services"
	"github.com/noob-master-jpb/CTFd/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	utils.InitJWT(cfg.JWTSecret)
	database.Connect(cfg.DatabaseDSN)
	database.InitRedis(cfg.RedisAddr, cfg.RedisPassword)

	images, err := services.LoadImageRegistry(cfg.Portainer.MapFile)
	if err != nil {
		log.Fatalf("Failed to load image mapping: %v", err)
	}

	backend, err := services.NewPortainerClient(cfg.Portainer)
	if err != nil {
		log.Fatalf("Failed to build backend client: %v", err)
	}

	ports := services.NewPortAllocator(database.DB)
	instances := services.NewInstanceService(
		database.DB, database.RDB, ports, images, backend, cfg.Portainer.VMIP)

	controllers.InitInstanceController(instances)
	controllers.InitAdminController(backend)

	r := routes.SetupRouter()

	log.Printf("Starting server on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
