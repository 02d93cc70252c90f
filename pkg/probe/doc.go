// Package probe implements host observation and plan application for the
// local machine: pacman for packages, systemctl for services, the docker
// CLI for container resources and the filesystem for tracked config files.
// Both sides share one CommandRunner abstraction so tests run against
// canned command output instead of a live host.
package probe
