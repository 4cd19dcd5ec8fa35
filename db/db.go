package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed seed/schemas/*.json seed/templates/*.txt
var SeedFiles embed.FS
