package live

// clientScript is injected before </body> on the index page. It replaces
// the body on every render message and forwards click, input and change
// events on elements carrying data-zeta-id.
const clientScript = `<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onmessage = function (e) {
    var msg = JSON.parse(e.data);
    if (msg.type === "render" || msg.type === "hello") {
      document.body.innerHTML = msg.data.html;
    }
  };
  function send(type, el, value) {
    if (ws.readyState !== WebSocket.OPEN) return;
    ws.send(JSON.stringify({type: "event", element: el.getAttribute("data-zeta-id"), event: type, value: value}));
  }
  document.addEventListener("click", function (e) {
    var el = e.target.closest && e.target.closest("[z\\:click], [data-zeta-id]");
    if (el && el.getAttribute("data-zeta-id")) send("click", el);
  });
  ["input", "change"].forEach(function (type) {
    document.addEventListener(type, function (e) {
      var el = e.target;
      if (!el.getAttribute || !el.getAttribute("data-zeta-id")) return;
      var checkable = el.type === "checkbox" || el.type === "radio";
      send(type, el, checkable ? el.checked : el.value);
    });
  });
})();
</script>`
