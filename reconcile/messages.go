package reconcile

import (
	"fmt"

	"stopcpd/clone"
	"stopcpd/notify"
)

const (
	titleInitialized = "stopcpd has been initialized"
	titleDeleted     = "Duplicated code has been deleted"
	titleDetected    = "Duplicated code has been newly detected"
)

func initializedMessage(count int) notify.Notification {
	body := "You have no duplicated code"
	if count > 0 {
		body = fmt.Sprintf("You already have %d duplicated code", count)
	}
	return notify.Notification{Severity: notify.Info, Title: titleInitialized, Body: body}
}

func deletedMessage(c clone.Clone) notify.Notification {
	return notify.Notification{
		Severity: notify.Success,
		Title:    titleDeleted,
		Body:     c.DuplicationA.String() + "\n" + c.DuplicationB.String(),
	}
}

func detectedMessage(c clone.Clone) notify.Notification {
	return notify.Notification{
		Severity:  notify.Alarm,
		Title:     titleDetected,
		Body:      c.DuplicationA.String() + "\n    " + c.DuplicationB.String(),
		Clickable: true,
	}
}
