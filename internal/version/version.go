package version

var (
	AppName    = "Rubber Ducky"
	AppVersion = "dev"
)
