package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Client --dir ../domain/feed --output domain/feed --outpkg feedmock --filename client_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name LedgerRepository --dir ../domain/feed --output domain/feed --outpkg feedmock --filename ledger_repository_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/jobscheduler --output domain/jobscheduler --outpkg jobschedulermock --filename repository_mock.go
