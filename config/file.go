package config

import (
	"fmt"
	"os"

	"github.com/parity-relay/bridge/bridgeerr"
)

func openConfigFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, bridgeerr.New(bridgeerr.MissingFile, fmt.Sprintf("config file %s does not exist", path), err)
		}
		return nil, bridgeerr.New(bridgeerr.IO, fmt.Sprintf("opening config file %s", path), err)
	}
	return f, nil
}
