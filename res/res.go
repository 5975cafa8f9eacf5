// Package res carries the assets compiled into the installer: the
// MultiMC/Prism pack format templates, the server launcher template jar
// and the profile icon.
package res

import _ "embed"

//go:embed ServerLauncher.jar
var ServerLauncherJar []byte

//go:embed icon.png
var IconBytes []byte

//go:embed packformat/instance.cfg
var InstanceConfig string

//go:embed packformat/mmc-pack.json
var MMCPack string

//go:embed packformat/patches/net.fabricmc.intermediary.json
var IntermediaryPatch string
