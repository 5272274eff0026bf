// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"gitlab.com/jaxnet/smicp/network/rpcclient"
	"gopkg.in/yaml.v3"
)

type Config struct {
	RPC       rpcclient.ConnConfig `yaml:"rpc"`
	SecretKey string               `yaml:"secret_key"`
	DataFile  string               `yaml:"data_file"`
}

func defaultConfig() Config {
	return Config{
		RPC:      rpcclient.ConnConfig{Host: "127.0.0.1:7447"},
		DataFile: "./batch.csv",
	}
}

func parseConfig(path string) (Config, error) {
	rawFile, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "Unable to read configuration")
	}

	cfg := defaultConfig()
	if err = yaml.Unmarshal(rawFile, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "Unable to decode configuration")
	}

	return cfg, nil
}
