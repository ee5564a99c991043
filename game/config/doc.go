// Package config manages the map descriptors the server can deal games on.
//
// Map descriptors are JSON files in a directory (configs/ by default); the
// file name without .json is the map ID used for session creation. Every
// descriptor is validated on load with struct tags and cross-reference
// checks (see engine.ValidateMap) and cached afterwards.
//
// The built-in heartland map is always available under DefaultMapID, even
// when the directory is empty; a heartland.json file in the directory
// replaces it.
//
// Usage:
//
//	maps, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	desc, err := maps.LoadMap("heartland")
//	infos, err := maps.ListMaps()
package config
