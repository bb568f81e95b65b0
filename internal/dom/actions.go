package dom

import (
	"context"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

func NavigateAction(url string) chromedp.Action {
	return chromedp.Navigate(url)
}

func TypeAction(selector string, text string) chromedp.Action {
	return chromedp.SendKeys(selector, text, chromedp.ByQuery)
}

func ClickAction(selector string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	}
}

func WaitVisibleAction(selector string) chromedp.Action {
	return chromedp.WaitVisible(selector, chromedp.ByQuery)
}

func GetTextContentAction(res *string) chromedp.Action {
	return chromedp.Evaluate(`document.body.innerText`, res)
}

func GetOuterHTMLAction(selector string, res *string) chromedp.Action {
	return chromedp.OuterHTML(selector, res, chromedp.ByQuery)
}

func GetLocationAction(url *string) chromedp.Action {
	return chromedp.Location(url)
}

func ScreenshotAction(quality int, res *[]byte) chromedp.Action {
	return chromedp.FullScreenshot(res, quality)
}

// IsElementPresentAction checks existence without waiting for visibility.
// "Not found" is a valid answer, not an error; only context cancellation
// propagates.
func IsElementPresentAction(selector string, isPresent *bool) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		err := chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			*isPresent = false
			return nil
		}
		*isPresent = len(nodes) > 0
		return nil
	})
}
