package model

// Version is set at build time via -ldflags "-X github.com/openziti/storelab/kernel/model.Version=x.y.z"
var Version = "0.1.0"
