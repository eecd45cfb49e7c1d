package client

// Notifier показывает пользователю блокирующее сообщение (alert)
type Notifier interface {
	Alert(message string)
}

// NotifierFunc - адаптер функции к Notifier
type NotifierFunc func(message string)

func (f NotifierFunc) Alert(message string) { f(message) }

// nopNotifier ничего не показывает
type nopNotifier struct{}

func (nopNotifier) Alert(string) {}

// NotifierOrNop возвращает n или пустой Notifier
func NotifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
