// Package sqlstore содержит общую database/sql-реализацию репозитория заказов
// поверх внешней таблицы orders. Различия СУБД вынесены в Dialect.
package sqlstore

import "time"

// Dialect описывает различия между драйверами.
type Dialect interface {
	// Name возвращает имя диалекта для логов и ошибок.
	Name() string
	// Placeholder возвращает плейсхолдер n-го аргумента (нумерация с 1).
	Placeholder(n int) string
	// LockTimeoutStatement возвращает SQL, ограничивающий ожидание блокировки
	// в текущей транзакции; для пустой строки остаётся значение сервера.
	LockTimeoutStatement(timeout time.Duration) string
	// IsLockTimeout распознаёт ошибку ожидания блокировки или дедлок.
	IsLockTimeout(err error) bool
}
