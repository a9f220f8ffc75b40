// Package mock contains gomock generated mocks for the interfaces
// declared by this repository.
package mock

//go:generate mockgen -destination filespace.go -package mock github.com/buildbarn/bb-filespace/pkg/filespace BackingStoreDriver,FreeSpaceManager,Storage
