package config

var (
	Version    string = "dev"
	CommitHash string = "n/a"
)

// IsDevelopment 判断是否为开发构建
func IsDevelopment() bool {
	return Version == "dev" || CommitHash == "n/a"
}
