package config

import (
	"github.com/spf13/viper"

	"github.com/covclient/coveralls-go/pkg/global"
)

func setDefaultConfig() {
	viper.SetDefault("LogConfig.EnableConsole", true)
	viper.SetDefault("LogConfig.ConsoleJSONFormat", false)
	viper.SetDefault("LogConfig.ConsoleLevel", "info")
	viper.SetDefault("LogConfig.EnableFile", false)
	viper.SetDefault("LogConfig.FileJSONFormat", true)
	viper.SetDefault("LogConfig.FileLevel", "debug")
	viper.SetDefault("LogConfig.FileLocation", "./coveralls.log")
	viper.SetDefault("repoRoot", ".")
	viper.SetDefault("profiles", []string{global.DefaultProfile})
	viper.SetDefault("Verbose", false)
}
