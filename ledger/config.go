package ledger

import (
	"fmt"
	"os"

	"github.com/gofrs/uuid"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

const defaultNativePrecision = 8

type Configuration struct {
	App struct {
		ClientId   string `toml:"client-id"`
		SessionId  string `toml:"session-id"`
		PrivateKey string `toml:"private-key"`
		PinToken   string `toml:"pin-token"`
		PIN        string `toml:"pin"`
	} `toml:"app"`
	Genesis struct {
		Deployer    string `toml:"deployer"`
		Fungible    string `toml:"fungible"`
		NonFungible string `toml:"non-fungible"`
	} `toml:"genesis"`
	Native struct {
		AssetId   string `toml:"asset-id"`
		Precision int32  `toml:"precision"`
	} `toml:"native"`
	API struct {
		Listen string `toml:"listen"`
	} `toml:"api"`
}

func Setup(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	var conf Configuration
	err = toml.Unmarshal(data, &conf)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if conf.Native.Precision == 0 {
		conf.Native.Precision = defaultNativePrecision
	}
	if conf.API.Listen == "" {
		conf.API.Listen = "127.0.0.1:7080"
	}
	return &conf, conf.validate()
}

func (conf *Configuration) validate() error {
	id, _ := uuid.FromString(conf.Genesis.Deployer)
	if id.String() == uuid.Nil.String() {
		return fmt.Errorf("invalid genesis deployer %s", conf.Genesis.Deployer)
	}
	if conf.Genesis.Fungible == "" || conf.Genesis.NonFungible == "" {
		return fmt.Errorf("genesis requires both a fungible and a non fungible asset service")
	}
	if conf.Native.Precision < 0 || conf.Native.Precision > 18 {
		return fmt.Errorf("invalid native precision %d", conf.Native.Precision)
	}
	return nil
}
