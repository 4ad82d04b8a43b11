// Package archive locates the `release` descriptor inside a downloaded JDK
// package and parses it. Zip and tar containers are read in-process; rpm,
// deb, msi and pkg installers are unpacked into a scratch directory with the
// platform's extraction tools.
package archive
